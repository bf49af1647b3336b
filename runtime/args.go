package runtime

import "github.com/wippyai/librebol/value"

type argKind uint8

const (
	argEnd argKind = iota
	argHandle
	argSource
	argRelease
	argValue
	argQuote
	argUnquote
)

// Arg is one element of a marshalled argument sequence. Build it with the
// constructors below; the zero Arg is End.
type Arg struct {
	kind   argKind
	h      *Handle
	src    string
	v      *value.Value
	n      int
	nested []Arg
}

// End terminates an argument sequence. Anything after it is ignored.
var End = Arg{kind: argEnd}

// V splices a handle's value. The nil handle splices null.
func V(h *Handle) Arg { return Arg{kind: argHandle, h: h} }

// S is a UTF-8 source fragment, scanned as code.
func S(src string) Arg { return Arg{kind: argSource, src: src} }

// R splices h and releases it once the call that consumed it is done.
func R(h *Handle) Arg { return Arg{kind: argRelease, h: h} }

// Releasing is the long form of R.
func Releasing(h *Handle) Arg { return R(h) }

// Q quotes every spliced value in args one level.
func Q(args ...Arg) Arg { return Quoting(1, args...) }

// Quoting quotes every spliced value in args n levels.
func Quoting(n int, args ...Arg) Arg { return Arg{kind: argQuote, n: n, nested: args} }

// U removes one quote level from every spliced value in args.
func U(args ...Arg) Arg { return Unquoting(1, args...) }

// Unquoting removes n quote levels from every spliced value in args.
func Unquoting(n int, args ...Arg) Arg { return Arg{kind: argUnquote, n: n, nested: args} }

// T splices a TEXT! value without creating a handle.
func T(s string) Arg { return Arg{kind: argValue, v: value.Text(s)} }

// I splices an INTEGER! value without creating a handle.
func I(i int64) Arg { return Arg{kind: argValue, v: value.Integer(i)} }

// L splices a LOGIC! value without creating a handle.
func L(b bool) Arg { return Arg{kind: argValue, v: value.Logic(b)} }

// Val splices an existing value without creating a handle.
func Val(v *value.Value) Arg { return Arg{kind: argValue, v: v} }
