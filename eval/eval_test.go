package eval

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

func run(t *testing.T, in *Interp, src string) *value.Value {
	t.Helper()
	v, err := in.DoString(src)
	require.NoError(t, err, src)
	return v
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2", "3"},
		{"1 + 2 * 3", "9"},
		{"add 1 + 2 3", "6"},
		{"10 / 4", "2.5"},
		{"10 / 5", "2"},
		{"1.5 + 1", "2.5"},
		{"x: 10 x + 1", "11"},
		{"'a", "a"},
		{"''a", "'a"},
		{"quote 1", "'1"},
		{"unquote the '''x", "''x"},
		{"quotes-of the ''x", "2"},
		{"the (1 + 2)", "(1 + 2)"},
		{"(1 + 2) * 2", "6"},
		{"if 1 < 2 [\"yes\"]", `"yes"`},
		{"if false [1]", "~null~"},
		{"either blank [1] [2]", "2"},
		{"all [1 2 3]", "3"},
		{"all [1 false 3]", "~null~"},
		{"any [false null 4]", "4"},
		{"n: 0 while [n < 5] [n: n + 1] n", "5"},
		{"s: 0 repeat 3 [s: s + 2] s", "6"},
		{"not null", "true"},
		{"did 0", "true"},
		{"join \"a\" 1", `"a1"`},
		{"b: [1] append b [2 3] b", "[1 2 3]"},
		{"length-of \"héllo\"", "5"},
		{"first [a b]", "a"},
		{"type-of 1", "integer!"},
		{"type-of the 'x", "quoted!"},
		{"reduce [1 + 1 \"x\"]", `[2 "x"]`},
		{"do [1 + 1]", "2"},
		{"do \"3 * 3\"", "9"},
		{"f: func [a b] [a * b] f 3 4", "12"},
		{"g: func ['w] [w] g foo", "foo"},
		{"error? trap [fail \"bad\"]", "true"},
		{"trap [1]", "~null~"},
		{"mold [1 \"a\"]", `"[1 ^"a^"]"`},
		{"1 = 1.0", "true"},
		{"\"abc\" <> \"ABC\"", "false"},
		{"null? null", "true"},
		{"quoted? the 'a", "true"},
		{"", "~void~"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			in := New(Options{})
			assert.Equal(t, tt.want, value.Mold(run(t, in, tt.src)))
		})
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		src string
		id  string
	}{
		{"undefined-word", "not-bound"},
		{"1 + \"a\"", "expect-arg"},
		{"1 / 0", "zero-divide"},
		{"9223372036854775807 + 1", "overflow"},
		{"-9223372036854775807 - 2", "overflow"},
		{"fail \"boom\"", "user"},
		{"fail make-error \"custom\"", "user"},
		{"unquote 1", "expect-arg"},
		{"if void [1]", "bad-void"},
		{"add 1", "need-arg"},
		{"+ 1", "need-arg"},
		{"x:", "need-value"},
		{"reduce [null]", "bad-null"},
		{"f: func [] [f] f", "stack-overflow"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			in := New(Options{MaxDepth: 64})
			_, err := in.DoString(tt.src)
			require.Error(t, err)
			f, ok := AsFailure(err)
			require.True(t, ok, "expected failure, got %v", err)
			assert.Equal(t, tt.id, f.ID())
		})
	}
}

func TestOverflowMessage(t *testing.T) {
	in := New(Options{})
	_, err := in.DoString("9223372036854775807 * 2")
	f, ok := AsFailure(err)
	require.True(t, ok, "expected failure, got %v", err)
	assert.Equal(t, "overflow", f.ID())
	assert.Contains(t, f.Message(), "9223372036854775807 * 2 overflows integer!")
}

func TestTrapReturnsErrorValue(t *testing.T) {
	in := New(Options{})
	v := run(t, in, `trap [fail "nope"]`)
	require.Equal(t, value.KindError, v.Kind)
	assert.Equal(t, "nope", v.Err.Message)
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	in := New(Options{Stdout: &out})
	run(t, in, `print "hi" print [1 + 1 "x"]`)
	assert.Equal(t, "hi\n2 x\n", out.String())
}

func TestTickAdvances(t *testing.T) {
	in := New(Options{})
	before := in.Tick()
	run(t, in, "1 + 2")
	mid := in.Tick()
	assert.Greater(t, mid, before)
	run(t, in, "1")
	assert.Greater(t, in.Tick(), mid)
}

func TestHalt(t *testing.T) {
	in := New(Options{})
	in.Halt()
	_, err := in.DoString("1")
	require.Error(t, err)
	assert.True(t, IsHalted(err))

	// the request is consumed
	run(t, in, "1")

	t.Run("trap does not intercept halt", func(t *testing.T) {
		in.Halt()
		_, err := in.DoString("trap [1 + 1]")
		assert.Equal(t, errors.KindHalted, errors.KindOf(err))
	})

	t.Run("from another goroutine", func(t *testing.T) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			in.Halt()
		}()
		_, err := in.DoString("while [true] [1]")
		assert.True(t, IsHalted(err))
	})
}

func TestDefineNative(t *testing.T) {
	in := New(Options{})
	in.Define("double", []value.Param{{Name: "n"}}, func(args []*value.Value) (*value.Value, error) {
		return value.Integer(args[0].Int * 2), nil
	})
	assert.Equal(t, int64(42), run(t, in, "double 20 + 1").Int)

	_, ok := in.Lookup("DOUBLE")
	assert.True(t, ok, "words are case-insensitive")
}

func TestDynamicScope(t *testing.T) {
	in := New(Options{})
	v := run(t, in, "x: 1 f: func [x] [g] g: func [] [x] f 5")
	assert.Equal(t, int64(5), v.Int)
	assert.Equal(t, int64(1), run(t, in, "x").Int)
}

func TestFromError(t *testing.T) {
	f := FromError(errors.Usage(errors.PhaseOwnership, "rebRelease", "managed"))
	assert.Equal(t, "usage", f.ID())

	original := Fail("user", "x")
	assert.Same(t, original, FromError(original))
}
