package lib

import (
	"github.com/wippyai/librebol/runtime"
	"github.com/wippyai/librebol/value"
)

// Table is the capability table handed to extensions. Field order is the
// ordinal layout and is append only; extensions built against an older
// table only ever read a prefix of it.
//
// Entries taking a quotes argument quote every spliced value in their
// argument sequence that many levels, like the Q-suffixed runtime methods.
type Table struct {
	EnterAPI  func() error
	Malloc    func(size int) (*runtime.Buffer, error)
	Realloc   func(b *runtime.Buffer, size int) (*runtime.Buffer, error)
	Free      func(b *runtime.Buffer) error
	Repossess func(b *runtime.Buffer, size int) (*runtime.Handle, error)
	Startup   func(cfg *runtime.Config) (*runtime.Runtime, error)
	Shutdown  func(clean bool) error
	Tick      func() uint64

	Void                func() *runtime.Handle
	Blank               func() *runtime.Handle
	Logic               func(b bool) *runtime.Handle
	Char                func(r rune) (*runtime.Handle, error)
	Integer             func(i int64) *runtime.Handle
	Decimal             func(f float64) *runtime.Handle
	SizedBinary         func(data []byte) (*runtime.Handle, error)
	UninitializedBinary func(size int) (*runtime.Handle, error)
	BinaryHead          func(h *runtime.Handle) ([]byte, error)
	BinaryAt            func(h *runtime.Handle, offset int) ([]byte, error)
	BinarySizeAt        func(h *runtime.Handle) (int, error)
	SizedText           func(utf8 []byte, size int) (*runtime.Handle, error)
	Text                func(s string) (*runtime.Handle, error)
	LengthedTextWide    func(wide []uint16, num int) (*runtime.Handle, error)
	TextWide            func(wide []uint16) (*runtime.Handle, error)
	Handle              func(data any, length int, cleaner runtime.Cleaner) (*runtime.Handle, error)

	ArgR          func(quotes uint8, name string) (*value.Value, error)
	Arg           func(quotes uint8, name string) (*runtime.Handle, error)
	Value         func(quotes uint8, args ...runtime.Arg) (*runtime.Handle, error)
	Quote         func(quotes uint8, args ...runtime.Arg) (*runtime.Handle, error)
	Elide         func(quotes uint8, args ...runtime.Arg) error
	Jumps         func(quotes uint8, args ...runtime.Arg)
	Did           func(quotes uint8, args ...runtime.Arg) (bool, error)
	Not           func(quotes uint8, args ...runtime.Arg) (bool, error)
	Unbox         func(quotes uint8, args ...runtime.Arg) (int64, error)
	Unbox0        func(h *runtime.Handle) (int64, error)
	UnboxInteger  func(quotes uint8, args ...runtime.Arg) (int64, error)
	UnboxInteger0 func(h *runtime.Handle) (int64, error)
	UnboxDecimal  func(quotes uint8, args ...runtime.Arg) (float64, error)
	UnboxChar     func(quotes uint8, args ...runtime.Arg) (rune, error)
	SpellInto     func(quotes uint8, buf []byte, args ...runtime.Arg) (int, error)
	Spell         func(quotes uint8, args ...runtime.Arg) (*runtime.Buffer, error)
	SpellIntoWide func(quotes uint8, buf []uint16, args ...runtime.Arg) (int, error)
	SpellWide     func(quotes uint8, args ...runtime.Arg) (*runtime.Buffer, error)
	BytesInto     func(quotes uint8, buf []byte, args ...runtime.Arg) (int, error)
	Bytes         func(quotes uint8, args ...runtime.Arg) (*runtime.Buffer, error)

	Rescue     func(fn runtime.Dangerous, opaque any) (*runtime.Handle, error)
	RescueWith func(fn runtime.Dangerous, rescuer runtime.Rescuer, opaque any) (*runtime.Handle, error)
	Halt       func()

	Quoting   func(n uint8, args ...runtime.Arg) runtime.Arg
	Unquoting func(n uint8, args ...runtime.Arg) runtime.Arg
	Releasing func(h *runtime.Handle) runtime.Arg
	Manage    func(h *runtime.Handle) (*runtime.Handle, error)
	Unmanage  func(h *runtime.Handle) (*runtime.Handle, error)
	Release   func(h *runtime.Handle) error

	DeflateAlloc       func(in []byte) (*runtime.Buffer, error)
	ZdeflateAlloc      func(in []byte) (*runtime.Buffer, error)
	GzipAlloc          func(in []byte) (*runtime.Buffer, error)
	InflateAlloc       func(in []byte, max int) (*runtime.Buffer, error)
	ZinflateAlloc      func(in []byte, max int) (*runtime.Buffer, error)
	GunzipAlloc        func(in []byte, max int) (*runtime.Buffer, error)
	DeflateDetectAlloc func(in []byte, max int) (*runtime.Buffer, error)
	FailOS             func(errnum int)
}

// quoted wraps args so every spliced value gains q quote levels.
func quoted(q uint8, args []runtime.Arg) []runtime.Arg {
	if q == 0 {
		return args
	}
	return []runtime.Arg{runtime.Quoting(int(q), args...)}
}

// New fills a table bound to rt.
func New(rt *runtime.Runtime) *Table {
	return &Table{
		EnterAPI:  rt.Enter,
		Malloc:    rt.Malloc,
		Realloc:   rt.Realloc,
		Free:      rt.Free,
		Repossess: rt.Repossess,
		Startup:   runtime.Startup,
		Shutdown:  rt.Shutdown,
		Tick:      rt.Tick,

		Void:                rt.Void,
		Blank:               rt.Blank,
		Logic:               rt.Logic,
		Char:                rt.Char,
		Integer:             rt.Integer,
		Decimal:             rt.Decimal,
		SizedBinary:         rt.SizedBinary,
		UninitializedBinary: rt.UninitializedBinary,
		BinaryHead:          rt.BinaryHead,
		BinaryAt:            rt.BinaryAt,
		BinarySizeAt:        rt.BinarySizeAt,
		SizedText:           rt.SizedText,
		Text:                rt.Text,
		LengthedTextWide:    rt.LengthedTextWide,
		TextWide:            rt.TextWide,
		Handle:              rt.Handle,

		ArgR: func(q uint8, name string) (*value.Value, error) {
			v, err := rt.ArgR(name)
			if err != nil {
				return nil, err
			}
			return value.Quoted(v, int(q)), nil
		},
		Arg: func(q uint8, name string) (*runtime.Handle, error) {
			v, err := rt.ArgR(name)
			if err != nil {
				return nil, err
			}
			return rt.Wrap(value.Quoted(v, int(q)))
		},
		Value: func(q uint8, args ...runtime.Arg) (*runtime.Handle, error) {
			return rt.Value(quoted(q, args)...)
		},
		Quote: func(q uint8, args ...runtime.Arg) (*runtime.Handle, error) {
			return rt.Quote(quoted(q, args)...)
		},
		Elide: func(q uint8, args ...runtime.Arg) error {
			return rt.Elide(quoted(q, args)...)
		},
		Jumps: func(q uint8, args ...runtime.Arg) {
			rt.Jumps(quoted(q, args)...)
		},
		Did: func(q uint8, args ...runtime.Arg) (bool, error) {
			return rt.Did(quoted(q, args)...)
		},
		Not: func(q uint8, args ...runtime.Arg) (bool, error) {
			return rt.Not(quoted(q, args)...)
		},
		Unbox: func(q uint8, args ...runtime.Arg) (int64, error) {
			return rt.Unbox(quoted(q, args)...)
		},
		Unbox0: rt.Unbox0,
		UnboxInteger: func(q uint8, args ...runtime.Arg) (int64, error) {
			return rt.UnboxInteger(quoted(q, args)...)
		},
		UnboxInteger0: rt.UnboxInteger0,
		UnboxDecimal: func(q uint8, args ...runtime.Arg) (float64, error) {
			return rt.UnboxDecimal(quoted(q, args)...)
		},
		UnboxChar: func(q uint8, args ...runtime.Arg) (rune, error) {
			return rt.UnboxChar(quoted(q, args)...)
		},
		SpellInto: func(q uint8, buf []byte, args ...runtime.Arg) (int, error) {
			return rt.SpellInto(buf, quoted(q, args)...)
		},
		Spell: func(q uint8, args ...runtime.Arg) (*runtime.Buffer, error) {
			return rt.Spell(quoted(q, args)...)
		},
		SpellIntoWide: func(q uint8, buf []uint16, args ...runtime.Arg) (int, error) {
			return rt.SpellIntoWide(buf, quoted(q, args)...)
		},
		SpellWide: func(q uint8, args ...runtime.Arg) (*runtime.Buffer, error) {
			return rt.SpellWide(quoted(q, args)...)
		},
		BytesInto: func(q uint8, buf []byte, args ...runtime.Arg) (int, error) {
			return rt.BytesInto(buf, quoted(q, args)...)
		},
		Bytes: func(q uint8, args ...runtime.Arg) (*runtime.Buffer, error) {
			return rt.Bytes(quoted(q, args)...)
		},

		Rescue:     rt.Rescue,
		RescueWith: rt.RescueWith,
		Halt:       rt.Halt,

		Quoting: func(n uint8, args ...runtime.Arg) runtime.Arg {
			return runtime.Quoting(int(n), args...)
		},
		Unquoting: func(n uint8, args ...runtime.Arg) runtime.Arg {
			return runtime.Unquoting(int(n), args...)
		},
		Releasing: runtime.Releasing,
		Manage:    rt.Manage,
		Unmanage:  rt.Unmanage,
		Release:   rt.Release,

		DeflateAlloc:       rt.DeflateAlloc,
		ZdeflateAlloc:      rt.ZdeflateAlloc,
		GzipAlloc:          rt.GzipAlloc,
		InflateAlloc:       rt.InflateAlloc,
		ZinflateAlloc:      rt.ZinflateAlloc,
		GunzipAlloc:        rt.GunzipAlloc,
		DeflateDetectAlloc: rt.DeflateDetectAlloc,
		FailOS:             rt.FailOS,
	}
}
