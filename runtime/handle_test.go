package runtime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

func TestConstructors(t *testing.T) {
	rt := newRuntime(t)

	tests := []struct {
		name string
		h    *Handle
		kind value.Kind
		mold string
	}{
		{"void", rt.Void(), value.KindVoid, "~void~"},
		{"blank", rt.Blank(), value.KindBlank, "_"},
		{"logic", rt.Logic(true), value.KindLogic, "true"},
		{"integer", rt.Integer(-12), value.KindInteger, "-12"},
		{"decimal", rt.Decimal(2.5), value.KindDecimal, "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.h)
			assert.Equal(t, tt.kind, tt.h.Kind())
			v, err := rt.ValueOf(tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.mold, value.Mold(v))
			assert.NotZero(t, tt.h.ID())
		})
	}

	var null *Handle
	assert.Equal(t, value.KindNull, null.Kind())
	assert.Zero(t, null.ID())
	v, err := rt.ValueOf(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestChar(t *testing.T) {
	rt := newRuntime(t)

	for _, r := range []rune{'a', 'é', '😀', 0x10FFFF} {
		h, err := rt.Char(r)
		require.NoError(t, err)
		got, err := rt.UnboxChar(V(h))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	for _, r := range []rune{0, 0xD800, 0xDFFF, 0x110000, -1} {
		_, err := rt.Char(r)
		require.Error(t, err, "U+%04X", r)
		assert.Equal(t, errors.KindInvalidData, errors.KindOf(err))
	}
}

func TestTextConstructors(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.Text("ok")
	require.NoError(t, err)

	_, err = rt.Text("bad \xff byte")
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidUTF8, errors.KindOf(err))

	h, err := rt.SizedText([]byte("hello world"), 5)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := rt.SpellInto(buf, V(h))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = rt.SizedText([]byte("日本"), 2)
	assert.Equal(t, errors.KindInvalidUTF8, errors.KindOf(err), "cut inside a sequence")

	_, err = rt.SizedText([]byte("abc"), 4)
	assert.Equal(t, errors.KindOutOfBounds, errors.KindOf(err))
}

func TestWideConstructors(t *testing.T) {
	rt := newRuntime(t)

	wide := []uint16{'h', 'i', 0xD83D, 0xDE00, 0, 'x'}
	h, err := rt.TextWide(wide)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := rt.SpellInto(buf, V(h))
	require.NoError(t, err)
	assert.Equal(t, "hi😀", string(buf[:n]))

	h, err = rt.LengthedTextWide(wide, 2)
	require.NoError(t, err)
	n, err = rt.SpellInto(buf, V(h))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))

	tests := [][]uint16{
		{0xD83D},
		{0xD83D, 'a'},
		{0xDE00, 0xD83D},
		{'a', 0xDC00},
	}
	for _, w := range tests {
		_, err := rt.LengthedTextWide(w, len(w))
		require.Error(t, err, "%x", w)
		assert.Equal(t, errors.KindInvalidData, errors.KindOf(err))
	}

	_, err = rt.LengthedTextWide(wide, 10)
	assert.Equal(t, errors.KindOutOfBounds, errors.KindOf(err))
}

func TestBinaryInternals(t *testing.T) {
	rt := newRuntime(t)

	src := []byte{9, 8, 7}
	h, err := rt.SizedBinary(src)
	require.NoError(t, err)
	src[0] = 0
	head, err := rt.BinaryHead(h)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, head, "input is copied")

	u, err := rt.UninitializedBinary(4)
	require.NoError(t, err)
	head, err = rt.BinaryHead(u)
	require.NoError(t, err)
	copy(head, "wxyz")

	at, err := rt.BinaryAt(u, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("yz"), at)

	size, err := rt.BinarySizeAt(u)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	got, err := rt.Bytes(V(u))
	require.NoError(t, err)
	assert.Equal(t, []byte("wxyz"), got.Bytes())
	require.NoError(t, rt.Free(got))

	_, err = rt.BinaryAt(u, 5)
	assert.Equal(t, errors.KindOutOfBounds, errors.KindOf(err))
	_, err = rt.BinaryHead(rt.Integer(1))
	assert.Equal(t, errors.KindTypeMismatch, errors.KindOf(err))
}

func TestDecimalSpecials(t *testing.T) {
	rt := newRuntime(t)
	for _, f := range []float64{0, -0.5, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		got, err := rt.UnboxDecimal(V(rt.Decimal(f)))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := rt.UnboxDecimal(V(rt.Decimal(math.Inf(1))))
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, 1))
}

func TestLookup(t *testing.T) {
	rt := newRuntime(t)
	h := rt.Integer(1)

	found, ok := rt.Lookup(h.ID())
	require.True(t, ok)
	assert.Same(t, h, found)

	_, ok = rt.Lookup(0)
	assert.False(t, ok)
	_, ok = rt.Lookup(9999)
	assert.False(t, ok)
}
