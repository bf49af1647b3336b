// Package librebol is an embedding boundary for an interpreter runtime.
//
// A host process drives the runtime through a fixed set of operations:
// constructing values, splicing them together with source fragments into
// expressions, evaluating those expressions, and materializing the results
// as native buffers. The same operations are published as an entry-point
// table so that extensions loaded later (Go packages or WebAssembly
// modules) can reach the host without linking against it.
//
// # Architecture Overview
//
//	librebol/            Wire-level constants and the guest Memory interface
//	├── runtime/         Runtime instance, handles, marshaller, rescue, buffers
//	├── lib/             Entry-point table handed to extensions
//	├── extension/       Go and WebAssembly extension loading
//	├── resource/        Handle table with ownership state per entry
//	├── eval/            Evaluator, word context and natives
//	├── scan/            Source fragment scanner
//	├── value/           Value cells, kinds and quote levels
//	├── codec/           Deflate, zlib and gzip helpers
//	├── errors/          Structured error types
//	├── cmd/r3/          REPL, one-shot evaluator and table inspector
//	└── examples/embed/  Minimal embedding program
//
// # Quick Start
//
//	rt, err := runtime.Startup(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown(true)
//
//	one := rt.Integer(1)
//	two, err := rt.Value(runtime.S("1 +"), runtime.V(one))
//	n, err := rt.UnboxInteger(runtime.V(two)) // 2
//
// # Null and End
//
// A nil *runtime.Handle is the runtime's null. The end of an argument
// sequence is marked with runtime.End; anything after the first End is
// ignored, so a redundant End is harmless.
//
// # Ownership
//
// Handles start out bound to the frame of the native call that created
// them and are reclaimed when that frame exits, including when it fails.
// Manage, Unmanage and Release move a handle out of that discipline:
//
//	h = rt.Manage(h)      // survives frame exit, reclaimed at shutdown
//	rt.Unmanage(h)        // now owned by native code
//	rt.Release(h)         // destroyed, or
//	rt.Rescope(h)         // back to the current frame
//
// # Failures
//
// Evaluation failures are returned as *eval.Failure errors. Rescue turns
// failures raised inside a callback, including the never-returning Jumps
// and FailOS operations, into ERROR! handles.
//
// # Thread Safety
//
// A Runtime is not safe for concurrent use. Callers on several goroutines
// must serialize access themselves. Halt is the exception: it may be
// called from any goroutine to interrupt a running evaluation.
package librebol
