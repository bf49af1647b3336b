package runtime

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

// spellCache holds the result of a size query so the fill call that
// follows it does not evaluate the expression a second time.
type spellCache struct {
	key  string
	tick uint64
	v    *value.Value
}

// materialize evaluates args for a two-phase entry point. A size query
// (query set) stores its result; a fill call with the same arguments and
// no evaluation since then takes it back instead of evaluating again.
func (rt *Runtime) materialize(entry string, quotes int, query bool, args []Arg) (*value.Value, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	key := fingerprint(entry, quotes, args)

	if c := rt.spell; c != nil {
		rt.spell = nil
		if !query && c.key == key && c.tick == rt.interp.Tick() {
			return c.v, nil
		}
	}

	v, err := rt.run(entry, quotes, args)
	if err != nil {
		return nil, err
	}
	if query {
		rt.spell = &spellCache{key: key, tick: rt.interp.Tick(), v: v}
	}
	return v, nil
}

func fingerprint(entry string, quotes int, args []Arg) string {
	var b strings.Builder
	b.WriteString(entry)
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(quotes))
	writeArgs(&b, args)
	return b.String()
}

func writeArgs(b *strings.Builder, args []Arg) {
	for _, a := range args {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(int(a.kind)))
		switch a.kind {
		case argEnd:
			return
		case argSource:
			b.WriteString(strconv.Quote(a.src))
		case argHandle, argRelease:
			fmt.Fprintf(b, "%p", a.h)
		case argValue:
			b.WriteString(value.Mold(a.v))
		case argQuote, argUnquote:
			b.WriteString(strconv.Itoa(a.n))
			b.WriteByte('[')
			writeArgs(b, a.nested)
			b.WriteByte(']')
		}
	}
}

// truncateUTF8 copies s into buf without splitting a UTF-8 sequence. The
// unused tail of buf is zeroed.
func truncateUTF8(buf []byte, s string) {
	n := copy(buf, s)
	if n < len(s) {
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		clear(buf[n:])
	}
}

// truncateUTF16 copies units into buf without splitting a surrogate pair.
func truncateUTF16(buf, units []uint16) {
	n := copy(buf, units)
	if n < len(units) && n > 0 && units[n-1] >= 0xD800 && units[n-1] < 0xDC00 {
		buf[n-1] = 0
	}
}

func spelling(entry string, v *value.Value) (string, error) {
	if v.IsNull() {
		return "", errors.NullResult(errors.PhaseBuffer, entry)
	}
	switch {
	case v.Is(value.KindText):
		return v.Str, nil
	case v.Is(value.KindChar):
		return string(v.Char), nil
	case v.Is(value.KindWord), v.Is(value.KindSetWord), v.Is(value.KindGetWord):
		return v.Str, nil
	case v.Is(value.KindError):
		return v.Err.Message, nil
	}
	return "", errors.TypeMismatch(errors.PhaseBuffer, entry, "text!, word! or error!", v.TypeName())
}

func byteSpan(entry string, v *value.Value) ([]byte, error) {
	if v.IsNull() {
		return nil, errors.NullResult(errors.PhaseBuffer, entry)
	}
	switch {
	case v.Is(value.KindBinary):
		return v.Bin, nil
	case v.Is(value.KindText):
		return []byte(v.Str), nil
	}
	return nil, errors.TypeMismatch(errors.PhaseBuffer, entry, "binary! or text!", v.TypeName())
}

// SpellInto writes the UTF-8 spelling of the result into buf, truncating
// if it does not fit, and returns the full size in bytes. Call it with an
// empty buf to learn the size; the expression is evaluated only once
// across the query and the fill call.
func (rt *Runtime) SpellInto(buf []byte, args ...Arg) (int, error) {
	return rt.spellInto("rebSpellInto", 0, buf, args)
}

// SpellIntoQ is SpellInto with every spliced handle quoted one level.
func (rt *Runtime) SpellIntoQ(buf []byte, args ...Arg) (int, error) {
	return rt.spellInto("rebSpellIntoQ", 1, buf, args)
}

func (rt *Runtime) spellInto(entry string, quotes int, buf []byte, args []Arg) (int, error) {
	v, err := rt.materialize(entry, quotes, len(buf) == 0, args)
	if err != nil {
		return 0, err
	}
	s, err := spelling(entry, v)
	if err != nil {
		return 0, err
	}
	truncateUTF8(buf, s)
	return len(s), nil
}

// Spell returns the UTF-8 spelling of the result in a NUL-terminated
// foreign buffer the caller must Free. A null result returns a nil buffer.
func (rt *Runtime) Spell(args ...Arg) (*Buffer, error) {
	return rt.spellAlloc("rebSpell", 0, args)
}

// SpellQ is Spell with every spliced handle quoted one level.
func (rt *Runtime) SpellQ(args ...Arg) (*Buffer, error) {
	return rt.spellAlloc("rebSpellQ", 1, args)
}

func (rt *Runtime) spellAlloc(entry string, quotes int, args []Arg) (*Buffer, error) {
	v, err := rt.materialize(entry, quotes, false, args)
	if err != nil || v.IsNull() {
		return nil, err
	}
	s, err := spelling(entry, v)
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(s)+1)
	copy(data, s)
	return rt.allocate(data, false), nil
}

// SpellIntoWide writes the UTF-16 spelling of the result into buf,
// truncating if it does not fit, and returns the full size in code units.
func (rt *Runtime) SpellIntoWide(buf []uint16, args ...Arg) (int, error) {
	return rt.spellIntoWide("rebSpellIntoWide", 0, buf, args)
}

// SpellIntoWideQ is SpellIntoWide with every spliced handle quoted one
// level.
func (rt *Runtime) SpellIntoWideQ(buf []uint16, args ...Arg) (int, error) {
	return rt.spellIntoWide("rebSpellIntoWideQ", 1, buf, args)
}

func (rt *Runtime) spellIntoWide(entry string, quotes int, buf []uint16, args []Arg) (int, error) {
	v, err := rt.materialize(entry, quotes, len(buf) == 0, args)
	if err != nil {
		return 0, err
	}
	s, err := spelling(entry, v)
	if err != nil {
		return 0, err
	}
	units := utf16.Encode([]rune(s))
	truncateUTF16(buf, units)
	return len(units), nil
}

// SpellWide returns the UTF-16 spelling of the result in a NUL-terminated
// foreign buffer of little-endian code units.
func (rt *Runtime) SpellWide(args ...Arg) (*Buffer, error) {
	return rt.spellWide("rebSpellWide", 0, args)
}

// SpellWideQ is SpellWide with every spliced handle quoted one level.
func (rt *Runtime) SpellWideQ(args ...Arg) (*Buffer, error) {
	return rt.spellWide("rebSpellWideQ", 1, args)
}

func (rt *Runtime) spellWide(entry string, quotes int, args []Arg) (*Buffer, error) {
	v, err := rt.materialize(entry, quotes, false, args)
	if err != nil || v.IsNull() {
		return nil, err
	}
	s, err := spelling(entry, v)
	if err != nil {
		return nil, err
	}
	units := utf16.Encode([]rune(s))
	data := make([]byte, 2*(len(units)+1))
	for i, u := range units {
		binary.LittleEndian.PutUint16(data[2*i:], u)
	}
	return rt.allocate(data, true), nil
}

// BytesInto copies the bytes of a BINARY! or TEXT! result into buf,
// truncating if needed, and returns the full size.
func (rt *Runtime) BytesInto(buf []byte, args ...Arg) (int, error) {
	return rt.bytesInto("rebBytesInto", 0, buf, args)
}

// BytesIntoQ is BytesInto with every spliced handle quoted one level.
func (rt *Runtime) BytesIntoQ(buf []byte, args ...Arg) (int, error) {
	return rt.bytesInto("rebBytesIntoQ", 1, buf, args)
}

func (rt *Runtime) bytesInto(entry string, quotes int, buf []byte, args []Arg) (int, error) {
	v, err := rt.materialize(entry, quotes, len(buf) == 0, args)
	if err != nil {
		return 0, err
	}
	data, err := byteSpan(entry, v)
	if err != nil {
		return 0, err
	}
	copy(buf, data)
	return len(data), nil
}

// Bytes returns a copy of the result's bytes in a foreign buffer.
func (rt *Runtime) Bytes(args ...Arg) (*Buffer, error) {
	return rt.bytesAlloc("rebBytes", 0, args)
}

// BytesQ is Bytes with every spliced handle quoted one level.
func (rt *Runtime) BytesQ(args ...Arg) (*Buffer, error) {
	return rt.bytesAlloc("rebBytesQ", 1, args)
}

func (rt *Runtime) bytesAlloc(entry string, quotes int, args []Arg) (*Buffer, error) {
	v, err := rt.materialize(entry, quotes, false, args)
	if err != nil || v.IsNull() {
		return nil, err
	}
	data, err := byteSpan(entry, v)
	if err != nil {
		return nil, err
	}
	return rt.allocate(append([]byte{}, data...), false), nil
}
