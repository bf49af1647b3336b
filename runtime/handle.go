package runtime

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/resource"
	"github.com/wippyai/librebol/value"
)

// Handle is an opaque reference to one runtime value. A nil *Handle is the
// runtime's null. A handle is valid from creation until it is released or
// its frame is reclaimed.
type Handle struct {
	rt *Runtime
	id resource.ID
}

// cell is what the resource table stores for each handle.
type cell struct {
	v *value.Value
	h *Handle
}

// ID returns the handle's table id. Ids of reclaimed handles are reused.
func (h *Handle) ID() uint32 {
	if h == nil {
		return 0
	}
	return uint32(h.id)
}

// Kind returns the value's datatype, or KindNull for the null handle and
// stale handles.
func (h *Handle) Kind() value.Kind {
	if h == nil {
		return value.KindNull
	}
	v, err := h.rt.cell("handle", h)
	if err != nil || v == nil {
		return value.KindNull
	}
	return v.Kind
}

// Ownership returns the current ownership state.
func (h *Handle) Ownership() (resource.State, bool) {
	if h == nil {
		return 0, false
	}
	if _, err := h.rt.cell("handle", h); err != nil {
		return 0, false
	}
	state, _, ok := h.rt.cells.State(h.id)
	return state, ok
}

// Valid reports whether the handle still refers to a live value.
func (h *Handle) Valid() bool {
	if h == nil {
		return false
	}
	_, err := h.rt.cell("handle", h)
	return err == nil
}

// wrap stores v as a new scope-bound handle in the current frame. Null
// values produce the nil handle.
func (rt *Runtime) wrap(v *value.Value) *Handle {
	if v.IsNull() {
		return nil
	}
	h := &Handle{rt: rt}
	h.id = rt.cells.Insert(rt.top().id, &cell{v: v, h: h})
	return h
}

// cell resolves a handle to its value. The nil handle resolves to nil.
func (rt *Runtime) cell(entry string, h *Handle) (*value.Value, error) {
	if h == nil {
		return nil, nil
	}
	if h.rt != rt {
		return nil, rt.usage(entry, "handle belongs to another runtime")
	}
	raw, ok := rt.cells.Get(h.id)
	if !ok {
		return nil, rt.usage(entry, "handle has been released")
	}
	c := raw.(*cell)
	if c.h != h {
		return nil, rt.usage(entry, "handle has been released")
	}
	return c.v, nil
}

// ValueOf returns the value a handle refers to.
func (rt *Runtime) ValueOf(h *Handle) (*value.Value, error) {
	if err := rt.enter("ValueOf"); err != nil {
		return nil, err
	}
	v, err := rt.cell("ValueOf", h)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return value.Null(), nil
	}
	return v, nil
}

// Lookup finds the live handle with the given id.
func (rt *Runtime) Lookup(id uint32) (*Handle, bool) {
	if rt.shut || id == 0 {
		return nil, false
	}
	raw, ok := rt.cells.Get(resource.ID(id))
	if !ok {
		return nil, false
	}
	return raw.(*cell).h, true
}

// Wrap makes a scope-bound handle for an existing value.
func (rt *Runtime) Wrap(v *value.Value) (*Handle, error) {
	if err := rt.enter("Wrap"); err != nil {
		return nil, err
	}
	return rt.wrap(v), nil
}

// IsError reports whether h holds an ERROR! value, which is how a guarded
// call's failure result is told apart from an ordinary one.
func (rt *Runtime) IsError(h *Handle) bool {
	v, err := rt.cell("IsError", h)
	return err == nil && v.Is(value.KindError)
}

// construct is the shared path of the infallible constructors: after
// shutdown they yield the null handle.
func (rt *Runtime) construct(entry string, v *value.Value) *Handle {
	if err := rt.enter(entry); err != nil {
		rt.log.Error(err.Error())
		return nil
	}
	return rt.wrap(v)
}

// Void returns a handle to the void value.
func (rt *Runtime) Void() *Handle { return rt.construct("rebVoid", value.Void()) }

// Blank returns a handle to the blank value.
func (rt *Runtime) Blank() *Handle { return rt.construct("rebBlank", value.Blank()) }

// Logic returns a LOGIC! handle.
func (rt *Runtime) Logic(b bool) *Handle { return rt.construct("rebLogic", value.Logic(b)) }

// Integer returns an INTEGER! handle.
func (rt *Runtime) Integer(i int64) *Handle { return rt.construct("rebInteger", value.Integer(i)) }

// Decimal returns a DECIMAL! handle.
func (rt *Runtime) Decimal(f float64) *Handle { return rt.construct("rebDecimal", value.Decimal(f)) }

// Char returns a CHAR! handle. Surrogates, out of range code points and
// NUL are rejected.
func (rt *Runtime) Char(r rune) (*Handle, error) {
	if err := rt.enter("rebChar"); err != nil {
		return nil, err
	}
	if r == 0 || !utf8.ValidRune(r) {
		return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidData).
			Entry("rebChar").
			Value(r).
			Detail("invalid code point U+%04X", r).
			Build()
	}
	return rt.wrap(value.Char(r)), nil
}

// Text returns a TEXT! handle for UTF-8 s.
func (rt *Runtime) Text(s string) (*Handle, error) {
	return rt.text("rebText", []byte(s))
}

// SizedText returns a TEXT! handle for the first size bytes of utf8.
func (rt *Runtime) SizedText(utf8Bytes []byte, size int) (*Handle, error) {
	if size < 0 || size > len(utf8Bytes) {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, "rebSizedText", size, len(utf8Bytes))
	}
	return rt.text("rebSizedText", utf8Bytes[:size])
}

func (rt *Runtime) text(entry string, b []byte) (*Handle, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, errors.InvalidUTF8(errors.PhaseMarshal, entry, b)
	}
	return rt.wrap(value.Text(string(b))), nil
}

// TextWide returns a TEXT! handle for NUL-terminated UTF-16. Decoding stops
// at the first zero unit or the end of the slice.
func (rt *Runtime) TextWide(wide []uint16) (*Handle, error) {
	n := 0
	for n < len(wide) && wide[n] != 0 {
		n++
	}
	return rt.wideText("rebTextWide", wide[:n])
}

// LengthedTextWide returns a TEXT! handle for num UTF-16 code units.
func (rt *Runtime) LengthedTextWide(wide []uint16, num int) (*Handle, error) {
	if num < 0 || num > len(wide) {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, "rebLengthedTextWide", num, len(wide))
	}
	return rt.wideText("rebLengthedTextWide", wide[:num])
}

func (rt *Runtime) wideText(entry string, wide []uint16) (*Handle, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	for i := 0; i < len(wide); i++ {
		u := wide[i]
		switch {
		case utf16.IsSurrogate(rune(u)) && u < 0xDC00:
			if i+1 >= len(wide) || wide[i+1] < 0xDC00 || wide[i+1] > 0xDFFF {
				return nil, unpaired(entry, i)
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF:
			return nil, unpaired(entry, i)
		}
	}
	return rt.wrap(value.Text(string(utf16.Decode(wide)))), nil
}

func unpaired(entry string, at int) error {
	return errors.New(errors.PhaseMarshal, errors.KindInvalidData).
		Entry(entry).
		Value(at).
		Detail("unpaired surrogate at unit %d", at).
		Build()
}

// SizedBinary returns a BINARY! handle holding a copy of data.
func (rt *Runtime) SizedBinary(data []byte) (*Handle, error) {
	if err := rt.enter("rebSizedBinary"); err != nil {
		return nil, err
	}
	return rt.wrap(value.Binary(append([]byte{}, data...))), nil
}

// UninitializedBinary returns a zero-filled BINARY! of size bytes for the
// caller to fill through BinaryHead.
func (rt *Runtime) UninitializedBinary(size int) (*Handle, error) {
	if err := rt.enter("rebUninitializedBinary_internal"); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, "rebUninitializedBinary_internal", size, 0)
	}
	return rt.wrap(value.Binary(make([]byte, size))), nil
}

func (rt *Runtime) binary(entry string, h *Handle) (*value.Value, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	v, err := rt.cell(entry, h)
	if err != nil {
		return nil, err
	}
	if !v.Is(value.KindBinary) {
		return nil, errors.TypeMismatch(errors.PhaseBuffer, entry, "binary!", v.TypeName())
	}
	return v, nil
}

// BinaryHead returns the binary's storage. Writes are visible to the value.
func (rt *Runtime) BinaryHead(h *Handle) ([]byte, error) {
	v, err := rt.binary("rebBinaryHead_internal", h)
	if err != nil {
		return nil, err
	}
	return v.Bin, nil
}

// BinaryAt returns the binary's storage from offset on.
func (rt *Runtime) BinaryAt(h *Handle, offset int) ([]byte, error) {
	v, err := rt.binary("rebBinaryAt_internal", h)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > len(v.Bin) {
		return nil, errors.OutOfBounds(errors.PhaseBuffer, "rebBinaryAt_internal", offset, len(v.Bin))
	}
	return v.Bin[offset:], nil
}

// BinarySizeAt returns the number of bytes in the binary.
func (rt *Runtime) BinarySizeAt(h *Handle) (int, error) {
	v, err := rt.binary("rebBinarySizeAt_internal", h)
	if err != nil {
		return 0, err
	}
	return len(v.Bin), nil
}

// Cleaner is invoked exactly once when a HANDLE! value is reclaimed.
type Cleaner func(data any, length int)

// Handle returns a HANDLE! wrapping native data. cleaner, if not nil, runs
// once when the collector finds the value unreachable or at clean shutdown.
func (rt *Runtime) Handle(data any, length int, cleaner Cleaner) (*Handle, error) {
	if err := rt.enter("rebHandle"); err != nil {
		return nil, err
	}
	o := value.NewOpaque(data, length, cleaner)
	if cleaner != nil {
		rt.opaques = append(rt.opaques, o)
	}
	return rt.wrap(value.Handle(o)), nil
}
