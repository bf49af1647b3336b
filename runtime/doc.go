// Package runtime is the native embedding boundary of the interpreter.
//
// # Quick Start
//
//	rt, err := runtime.Startup(&runtime.Config{Debug: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown(true)
//
//	n := rt.Integer(20)
//	sum, err := rt.UnboxInteger(runtime.V(n), runtime.S("+ 22"))
//	fmt.Println(sum) // 42
//
// # Argument Sequences
//
// Every evaluating entry point takes an ordered sequence of Arg values that
// mixes source fragments with live values:
//
//	S("append")      source text, scanned as code
//	V(h)             the value h refers to
//	R(h)             as V, then release h after the call
//	T, I, L          text, integer and logic values without a handle
//	Q(...), U(...)   quote or unquote every spliced value inside
//	End              stop; everything after it is ignored
//
// Quoting is additive: a value carrying one quote level spliced inside
// Quoting(2, ...) is seen with three levels. Unquoting below zero fails.
// The Q-suffixed entry points (ValueQ, DidQ, ...) quote the whole sequence
// one level.
//
// # Ownership
//
// Handles start scope-bound to the frame that created them. Frames are
// pushed by Rescue, host natives and extension calls, and everything they
// own is reclaimed when they exit, on every path.
//
//	Manage:   scope-bound -> managed   (survives the frame)
//	Unmanage: managed     -> unmanaged (caller must Release)
//	Release:  unmanaged   -> destroyed
//
// Any other transition is a usage error. With Config.Debug set, usage
// errors panic.
//
// # Failures
//
// Evaluation failures are returned as errors, usually *eval.Failure. Jumps
// and FailOS raise them as panics instead; Rescue and host natives recover
// those and Rescue reports every failure as an ERROR! handle. A Halt is
// never intercepted.
//
// # Buffers
//
// Malloc, Spell, Bytes and the compression family return *Buffer values
// owned by the current frame. Free them, or hand them to Repossess to turn
// their bytes into a BINARY! without copying.
//
// # Thread Safety
//
// A Runtime is NOT thread-safe. Halt may be called from any goroutine.
package runtime
