package runtime

import (
	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/eval"
	"github.com/wippyai/librebol/value"
)

// Value evaluates args and returns the result as a scope-bound handle.
// A null result is the nil handle.
func (rt *Runtime) Value(args ...Arg) (*Handle, error) {
	return rt.valueQ("rebValue", 0, args)
}

// ValueQ is Value with every spliced handle quoted one level.
func (rt *Runtime) ValueQ(args ...Arg) (*Handle, error) {
	return rt.valueQ("rebValueQ", 1, args)
}

func (rt *Runtime) valueQ(entry string, quotes int, args []Arg) (*Handle, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return nil, err
	}
	return rt.wrap(v), nil
}

// Quote evaluates args and returns the result quoted one level, so that
// splicing it back later yields the value itself.
func (rt *Runtime) Quote(args ...Arg) (*Handle, error) {
	return rt.quote("rebQuote", 0, args)
}

// QuoteQ is Quote with every spliced handle quoted one level.
func (rt *Runtime) QuoteQ(args ...Arg) (*Handle, error) {
	return rt.quote("rebQuoteQ", 1, args)
}

func (rt *Runtime) quote(entry string, quotes int, args []Arg) (*Handle, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return nil, err
	}
	return rt.wrap(value.Quoted(v, 1)), nil
}

// Elide evaluates args for their effect and discards the result.
func (rt *Runtime) Elide(args ...Arg) error {
	_, err := rt.run("rebElide", 0, args)
	return err
}

// ElideQ is Elide with every spliced handle quoted one level.
func (rt *Runtime) ElideQ(args ...Arg) error {
	_, err := rt.run("rebElideQ", 1, args)
	return err
}

// Jumps evaluates args, which are expected to raise a failure, and
// propagates that failure as a panic carrying an *eval.Failure. It never
// returns. If the evaluation completes, a no-jump failure is raised
// instead. A halt panics with the halt error.
//
// Only call Jumps beneath Rescue or a host native, both of which recover
// the panic.
func (rt *Runtime) Jumps(args ...Arg) {
	rt.jumps("rebJumps", 0, args)
}

// JumpsQ is Jumps with every spliced handle quoted one level.
func (rt *Runtime) JumpsQ(args ...Arg) {
	rt.jumps("rebJumpsQ", 1, args)
}

func (rt *Runtime) jumps(entry string, quotes int, args []Arg) {
	_, err := rt.run(entry, quotes, args)
	if err == nil {
		panic(eval.Fail("no-jump", "%s: evaluation completed without raising", entry))
	}
	if eval.IsHalted(err) {
		panic(err)
	}
	panic(eval.FromError(err))
}

// Did evaluates args and applies conditional truthiness: null, blank and
// false are false. A void result fails.
func (rt *Runtime) Did(args ...Arg) (bool, error) {
	return rt.did("rebDid", 0, args)
}

// DidQ is Did with every spliced handle quoted one level.
func (rt *Runtime) DidQ(args ...Arg) (bool, error) {
	return rt.did("rebDidQ", 1, args)
}

// Not is the inverse of Did.
func (rt *Runtime) Not(args ...Arg) (bool, error) {
	b, err := rt.did("rebNot", 0, args)
	return !b && err == nil, err
}

// NotQ is Not with every spliced handle quoted one level.
func (rt *Runtime) NotQ(args ...Arg) (bool, error) {
	b, err := rt.did("rebNotQ", 1, args)
	return !b && err == nil, err
}

func (rt *Runtime) did(entry string, quotes int, args []Arg) (bool, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return false, err
	}
	return eval.Truthy(v)
}

// Unbox evaluates args and extracts a logic (as 0 or 1), integer or char
// result as an integer.
func (rt *Runtime) Unbox(args ...Arg) (int64, error) {
	return rt.unbox("rebUnbox", 0, args)
}

// UnboxQ is Unbox with every spliced handle quoted one level.
func (rt *Runtime) UnboxQ(args ...Arg) (int64, error) {
	return rt.unbox("rebUnboxQ", 1, args)
}

// Unbox0 unboxes a single handle without evaluating anything.
func (rt *Runtime) Unbox0(h *Handle) (int64, error) {
	v, err := rt.peek("rebUnbox0", h)
	if err != nil {
		return 0, err
	}
	return unboxAny("rebUnbox0", v)
}

func (rt *Runtime) unbox(entry string, quotes int, args []Arg) (int64, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return 0, err
	}
	return unboxAny(entry, v)
}

func unboxAny(entry string, v *value.Value) (int64, error) {
	if v.IsNull() {
		return 0, errors.NullResult(errors.PhaseMarshal, entry)
	}
	switch {
	case v.Is(value.KindLogic):
		if v.Logic {
			return 1, nil
		}
		return 0, nil
	case v.Is(value.KindInteger):
		return v.Int, nil
	case v.Is(value.KindChar):
		return int64(v.Char), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseMarshal, entry, "logic!, integer! or char!", v.TypeName())
}

// UnboxInteger evaluates args and extracts an INTEGER! result.
func (rt *Runtime) UnboxInteger(args ...Arg) (int64, error) {
	return rt.unboxInteger("rebUnboxInteger", 0, args)
}

// UnboxIntegerQ is UnboxInteger with every spliced handle quoted one level.
func (rt *Runtime) UnboxIntegerQ(args ...Arg) (int64, error) {
	return rt.unboxInteger("rebUnboxIntegerQ", 1, args)
}

// UnboxInteger0 extracts the integer held by a single handle.
func (rt *Runtime) UnboxInteger0(h *Handle) (int64, error) {
	v, err := rt.peek("rebUnboxInteger0", h)
	if err != nil {
		return 0, err
	}
	return unboxInteger("rebUnboxInteger0", v)
}

func (rt *Runtime) unboxInteger(entry string, quotes int, args []Arg) (int64, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return 0, err
	}
	return unboxInteger(entry, v)
}

func unboxInteger(entry string, v *value.Value) (int64, error) {
	if v.IsNull() {
		return 0, errors.NullResult(errors.PhaseMarshal, entry)
	}
	if !v.Is(value.KindInteger) {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, entry, "integer!", v.TypeName())
	}
	return v.Int, nil
}

// UnboxDecimal evaluates args and extracts a DECIMAL! or INTEGER! result
// as a float.
func (rt *Runtime) UnboxDecimal(args ...Arg) (float64, error) {
	return rt.unboxDecimal("rebUnboxDecimal", 0, args)
}

// UnboxDecimalQ is UnboxDecimal with every spliced handle quoted one level.
func (rt *Runtime) UnboxDecimalQ(args ...Arg) (float64, error) {
	return rt.unboxDecimal("rebUnboxDecimalQ", 1, args)
}

func (rt *Runtime) unboxDecimal(entry string, quotes int, args []Arg) (float64, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return 0, err
	}
	switch {
	case v.IsNull():
		return 0, errors.NullResult(errors.PhaseMarshal, entry)
	case v.Is(value.KindDecimal):
		return v.Dec, nil
	case v.Is(value.KindInteger):
		return float64(v.Int), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseMarshal, entry, "decimal! or integer!", v.TypeName())
}

// UnboxChar evaluates args and extracts a CHAR! result.
func (rt *Runtime) UnboxChar(args ...Arg) (rune, error) {
	return rt.unboxChar("rebUnboxChar", 0, args)
}

// UnboxCharQ is UnboxChar with every spliced handle quoted one level.
func (rt *Runtime) UnboxCharQ(args ...Arg) (rune, error) {
	return rt.unboxChar("rebUnboxCharQ", 1, args)
}

func (rt *Runtime) unboxChar(entry string, quotes int, args []Arg) (rune, error) {
	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, errors.NullResult(errors.PhaseMarshal, entry)
	}
	if !v.Is(value.KindChar) {
		return 0, errors.TypeMismatch(errors.PhaseMarshal, entry, "char!", v.TypeName())
	}
	return v.Char, nil
}

// peek resolves a single handle for the non-evaluating entry points.
func (rt *Runtime) peek(entry string, h *Handle) (*value.Value, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	v, err := rt.cell(entry, h)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return value.Null(), nil
	}
	return v, nil
}
