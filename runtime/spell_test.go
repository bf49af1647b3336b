package runtime

import (
	"strings"
	"testing"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/librebol/errors"
)

var texts = []string{"", "a", "hello world", "naïve café", "日本語テキスト", "emoji 😀 pair", "tab\tand\nnewline"}

func TestTwoPhaseText(t *testing.T) {
	rt := newRuntime(t)

	for _, s := range texts {
		h, err := rt.Text(s)
		require.NoError(t, err)

		size, err := rt.SpellInto(nil, V(h))
		require.NoError(t, err)
		assert.Equal(t, len(s), size)

		buf := make([]byte, size)
		n, err := rt.SpellInto(buf, V(h))
		require.NoError(t, err)
		assert.Equal(t, size, n)
		assert.Equal(t, s, string(buf))
	}
}

func TestTwoPhaseWide(t *testing.T) {
	rt := newRuntime(t)

	for _, s := range texts {
		h, err := rt.Text(s)
		require.NoError(t, err)

		size, err := rt.SpellIntoWide(nil, V(h))
		require.NoError(t, err)
		buf := make([]uint16, size)
		n, err := rt.SpellIntoWide(buf, V(h))
		require.NoError(t, err)
		assert.Equal(t, size, n)
		assert.Equal(t, s, string(utf16.Decode(buf)))
	}
}

func TestSpellTruncates(t *testing.T) {
	rt := newRuntime(t)

	buf := make([]byte, 3)
	n, err := rt.SpellInto(buf, T("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abc", string(buf))

	wide := make([]uint16, 2)
	n, err = rt.SpellIntoWide(wide, T("wxyz"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "wx", string(utf16.Decode(wide)))
}

func TestSpellTruncatesAtCharBoundary(t *testing.T) {
	rt := newRuntime(t)

	tests := []struct {
		name string
		size int
		want string
	}{
		{"inside two-byte char", 2, "a"},
		{"after two-byte char", 3, "aé"},
		{"inside four-byte char", 5, "aé"},
		{"whole", 7, "aé😀"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			n, err := rt.SpellInto(buf, T("aé😀"))
			require.NoError(t, err)
			assert.Equal(t, 7, n)
			assert.Equal(t, tt.want, strings.TrimRight(string(buf), "\x00"))
			assert.True(t, utf8.Valid(buf))
		})
	}

	wide := make([]uint16, 2)
	n, err := rt.SpellIntoWide(wide, T("a😀"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint16{'a', 0}, wide)
}

func TestSpellEvaluatesOnce(t *testing.T) {
	rt := newRuntime(t)
	calls := 0
	require.NoError(t, rt.Native("next-name", nil, func(rt *Runtime) (*Handle, error) {
		calls++
		return rt.Text("name-" + string(rune('0'+calls)))
	}))

	size, err := rt.SpellInto(nil, S("next-name"))
	require.NoError(t, err)
	buf := make([]byte, size)
	_, err = rt.SpellInto(buf, S("next-name"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "name-1", string(buf))

	_, err = rt.SpellInto(buf, S("next-name"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a fill call without a query evaluates")

	t.Run("evaluation in between invalidates", func(t *testing.T) {
		calls = 0
		_, err := rt.SpellInto(nil, S("next-name"))
		require.NoError(t, err)
		require.NoError(t, rt.Elide(S("1")))
		_, err = rt.SpellInto(buf, S("next-name"))
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("different arguments miss", func(t *testing.T) {
		calls = 0
		_, err := rt.BytesInto(nil, S("next-name"))
		require.NoError(t, err)
		_, err = rt.BytesInto(buf, S("to-text next-name"))
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestSpellAlloc(t *testing.T) {
	rt := newRuntime(t)
	base := rt.Stats().Buffers

	b, err := rt.Spell(S("join {ab} {cd}"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", b.String())
	assert.Equal(t, 5, b.Len(), "includes the terminator")

	w, err := rt.SpellWide(T("zé"))
	require.NoError(t, err)
	assert.True(t, w.Wide())
	assert.Equal(t, []uint16{'z', 'é'}, w.Units())
	assert.Equal(t, "zé", w.String())

	none, err := rt.Spell(S("null"))
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, rt.Free(b))
	require.NoError(t, rt.Free(w))
	assert.Equal(t, base, rt.Stats().Buffers)
}

func TestSpellKinds(t *testing.T) {
	rt := newRuntime(t)

	tests := []struct {
		src  string
		want string
	}{
		{"{text}", "text"},
		{"the word", "word"},
		{"the set:", "set"},
		{`#"x"`, "x"},
		{"make-error {went wrong}", "went wrong"},
	}
	for _, tt := range tests {
		buf := make([]byte, 32)
		n, err := rt.SpellInto(buf, S(tt.src))
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, string(buf[:n]), tt.src)
	}

	_, err := rt.SpellInto(make([]byte, 4), S("1"))
	assert.Equal(t, errors.KindTypeMismatch, errors.KindOf(err))
	_, err = rt.SpellInto(make([]byte, 4), S("null"))
	assert.Equal(t, errors.KindNullResult, errors.KindOf(err))
}

func TestBytes(t *testing.T) {
	rt := newRuntime(t)

	h, err := rt.SizedBinary([]byte{1, 2, 3, 0, 5})
	require.NoError(t, err)

	size, err := rt.BytesInto(nil, V(h))
	require.NoError(t, err)
	assert.Equal(t, 5, size)

	b, err := rt.Bytes(V(h))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0, 5}, b.Bytes())

	tb, err := rt.Bytes(T("hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), tb.Bytes())

	_, err = rt.Bytes(S("1.5"))
	assert.Equal(t, errors.KindTypeMismatch, errors.KindOf(err))

	require.NoError(t, rt.Free(b))
	require.NoError(t, rt.Free(tb))
}
