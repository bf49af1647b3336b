package extension

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/eval"
	"github.com/wippyai/librebol/lib"
	"github.com/wippyai/librebol/runtime"
)

// A minimal core-module assembler, enough for guests that push constants,
// read locals, store to memory and call imports.

const i32 = 0x7f

type funcType struct {
	params, results []byte
}

type wasmFunc struct {
	export string
	typ    uint32
	code   []byte
}

type testModule struct {
	types   []funcType
	imports []struct {
		name string
		typ  uint32
	}
	funcs []wasmFunc
	data  []byte
}

func (m *testModule) importFunc(name string, typ uint32) uint32 {
	m.imports = append(m.imports, struct {
		name string
		typ  uint32
	}{name, typ})
	return uint32(len(m.imports) - 1)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func i32Const(v int32) []byte { return cat([]byte{0x41}, sleb(v)) }
func localGet(i uint32) []byte { return cat([]byte{0x20}, uleb(i)) }
func callFunc(i uint32) []byte { return cat([]byte{0x10}, uleb(i)) }

var i32Store = []byte{0x36, 0x02, 0x00}

func (m *testModule) encode() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	section := func(id byte, body []byte) {
		out = append(out, id)
		out = append(out, uleb(uint32(len(body)))...)
		out = append(out, body...)
	}

	body := uleb(uint32(len(m.types)))
	for _, t := range m.types {
		body = cat(body, []byte{0x60}, uleb(uint32(len(t.params))), t.params, uleb(uint32(len(t.results))), t.results)
	}
	section(1, body)

	body = uleb(uint32(len(m.imports)))
	for _, imp := range m.imports {
		body = cat(body, name(HostModule), name(imp.name), []byte{0x00}, uleb(imp.typ))
	}
	section(2, body)

	body = uleb(uint32(len(m.funcs)))
	for _, f := range m.funcs {
		body = cat(body, uleb(f.typ))
	}
	section(3, body)

	section(5, []byte{0x01, 0x00, 0x01})

	body = cat(uleb(uint32(len(m.funcs)+1)), name("memory"), []byte{0x02, 0x00})
	for i, f := range m.funcs {
		body = cat(body, name(f.export), []byte{0x00}, uleb(uint32(len(m.imports)+i)))
	}
	section(7, body)

	body = uleb(uint32(len(m.funcs)))
	for _, f := range m.funcs {
		fn := cat([]byte{0x00}, f.code, []byte{0x0b})
		body = cat(body, uleb(uint32(len(fn))), fn)
	}
	section(10, body)

	if len(m.data) > 0 {
		section(11, cat([]byte{0x01, 0x00}, i32Const(0), []byte{0x0b}, uleb(uint32(len(m.data))), m.data))
	}
	return out
}

func record(tag, quotes byte, a, b uint32) []byte {
	r := make([]byte, recordSize)
	r[0], r[1] = tag, quotes
	binary.LittleEndian.PutUint32(r[4:], a)
	binary.LittleEndian.PutUint32(r[8:], b)
	return r
}

var end = record(tagEnd, 0, 0, 0)

// guestImage lays out argument lists and the source text they point at.
func guestImage() []byte {
	img := make([]byte, 512)
	put := func(at int, b []byte) { copy(img[at:], b) }
	src := func(at int, s string) uint32 {
		put(at, []byte(s))
		return uint32(len(s))
	}

	put(0, cat(record(tagSource, 0, 256, src(256, "x: 40 + 2")), end))
	put(32, cat(record(tagSource, 0, 300, src(300, "20 + 22")), end))
	put(64, cat(record(tagSource, 0, 320, src(320, "1 +")), record(tagHandle, 0, 0, 0), end))
	put(112, cat(record(tagSource, 0, 340, src(340, "fail {boom}")), end))
	put(144, cat(record(tagSource, 0, 360, src(360, "the")), record(tagHandle, 2, 0, 0), end))
	return img
}

const (
	typeVoid2 = iota // (i32 i32) -> ()
	typeHandle2      // (i32 i32) -> i32
	typeNone         // () -> ()
	typeResult       // () -> i32
	typeUnary        // (i32) -> i32
)

func fixtureModule() *testModule {
	m := &testModule{
		types: []funcType{
			{params: []byte{i32, i32}},
			{params: []byte{i32, i32}, results: []byte{i32}},
			{},
			{results: []byte{i32}},
			{params: []byte{i32}, results: []byte{i32}},
		},
		data: guestImage(),
	}
	elide := m.importFunc("rebElide", typeVoid2)
	value := m.importFunc("rebValue", typeHandle2)
	jumps := m.importFunc("rebJumps", typeVoid2)

	m.funcs = []wasmFunc{
		{InitExport, typeNone, cat(i32Const(0), i32Const(0), callFunc(elide))},
		{"answer", typeResult, cat(i32Const(0), i32Const(32), callFunc(value))},
		{"rx_native_add_one", typeUnary, cat(
			i32Const(80), localGet(0), i32Store,
			i32Const(0), i32Const(64), callFunc(value))},
		{"rx_native_twice_quoted", typeUnary, cat(
			i32Const(160), localGet(0), i32Store,
			i32Const(0), i32Const(144), callFunc(value))},
		{"boom", typeNone, cat(i32Const(0), i32Const(112), callFunc(jumps))},
		{"runaway", typeResult, cat(i32Const(0), i32Const(65536-recordSize), callFunc(value))},
	}
	return m
}

func TestLoadWASM(t *testing.T) {
	ctx := context.Background()
	rt, l := newLoader(t)

	g, err := l.LoadWASM(ctx, "fixture", fixtureModule().encode())
	require.NoError(t, err)
	assert.Equal(t, "fixture", g.Name())
	assert.Equal(t, []string{"add-one", "twice-quoted"}, g.Natives())
	assert.Contains(t, g.Exports(), "answer")
	assert.Equal(t, []string{"fixture"}, l.Names())

	t.Run("init ran", func(t *testing.T) {
		x, err := rt.UnboxInteger(runtime.S("x"))
		require.NoError(t, err)
		assert.Equal(t, int64(42), x)
	})

	t.Run("handle result", func(t *testing.T) {
		h, err := g.CallHandle(ctx, "answer")
		require.NoError(t, err)
		n, err := rt.Unbox0(h)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("native", func(t *testing.T) {
		n, err := rt.UnboxInteger(runtime.S("add-one 41"))
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)

		n, err = rt.UnboxInteger(runtime.S("add-one add-one 40"))
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("record quoting", func(t *testing.T) {
		h, err := rt.Value(runtime.S("twice-quoted 7"))
		require.NoError(t, err)
		v, err := rt.ValueOf(h)
		require.NoError(t, err)
		assert.Equal(t, 2, v.Quotes)
	})

	t.Run("frames unwind", func(t *testing.T) {
		base := rt.Stats()
		_, err := g.Call(ctx, "answer")
		require.NoError(t, err)
		after := rt.Stats()
		assert.Equal(t, base.Handles(), after.Handles())
		assert.Equal(t, 1, after.Frames)
	})
}

func TestGuestFailures(t *testing.T) {
	ctx := context.Background()
	rt, l := newLoader(t)
	_, err := l.LoadWASM(ctx, "fixture", fixtureModule().encode())
	require.NoError(t, err)

	tests := []struct {
		export string
		id     string
	}{
		{"boom", "user"},
		{"runaway", string(errors.KindMissingEnd)},
	}
	for _, tt := range tests {
		t.Run(tt.export, func(t *testing.T) {
			_, err := l.Call(ctx, "fixture", tt.export)
			require.Error(t, err)
			f, ok := eval.AsFailure(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.id, f.ID())
			assert.Equal(t, 1, rt.Stats().Frames)
		})
	}

	t.Run("trap catches guest natives", func(t *testing.T) {
		ok, err := rt.Did(runtime.S("error? trap [add-one {x}]"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown export", func(t *testing.T) {
		_, err := l.Call(ctx, "fixture", "nope")
		assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
		_, err = l.Call(ctx, "other", "answer")
		assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
	})
}

func TestLoadWASMRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown entry", func(t *testing.T) {
		_, l := newLoader(t)
		m := &testModule{types: []funcType{{}}}
		m.importFunc("rebNope", 0)
		_, err := l.LoadWASM(ctx, "bad", m.encode())
		var missing *errors.MissingEntriesError
		require.True(t, errors.As(err, &missing), "got %v", err)
		require.Len(t, missing.Entries, 1)
		assert.Equal(t, "rebNope", missing.Entries[0].Name)
	})

	t.Run("host-only entry", func(t *testing.T) {
		_, l := newLoader(t)
		m := &testModule{types: []funcType{{}}}
		m.importFunc("rebRescue", 0)
		_, err := l.LoadWASM(ctx, "bad", m.encode())
		var missing *errors.MissingEntriesError
		assert.True(t, errors.As(err, &missing))
	})

	t.Run("wrong signature", func(t *testing.T) {
		_, l := newLoader(t)
		m := &testModule{types: []funcType{{}}}
		m.importFunc("rebValue", 0)
		_, err := l.LoadWASM(ctx, "bad", m.encode())
		assert.Equal(t, errors.KindLayout, errors.KindOf(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, l := newLoader(t)
		_, err := l.LoadWASM(ctx, "bad", []byte("not wasm"))
		assert.Equal(t, errors.KindInvalidData, errors.KindOf(err))
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, l := newLoader(t)
		_, err := l.LoadWASM(ctx, "fixture", fixtureModule().encode())
		require.NoError(t, err)
		_, err = l.LoadWASM(ctx, "fixture", fixtureModule().encode())
		assert.Equal(t, errors.KindUsage, errors.KindOf(err))
	})

	t.Run("failing init", func(t *testing.T) {
		_, l := newLoader(t)
		m := fixtureModule()
		for i := range m.funcs {
			if m.funcs[i].export == InitExport {
				m.funcs[i].code = cat(i32Const(0), i32Const(112), callFunc(0))
			}
		}
		_, err := l.LoadWASM(ctx, "fixture", m.encode())
		assert.Equal(t, errors.KindTrap, errors.KindOf(err))
		_, ok := l.Guest("fixture")
		assert.False(t, ok)
	})
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		entry  string
		params int
	}{
		{"rebValue", 2},
		{"rebSpellInto", 4},
		{"rebText", 2},
		{"rebInteger", 1},
		{"rebTick", 0},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			e, _, ok := lib.Lookup(tt.entry)
			require.True(t, ok)
			assert.Len(t, guestParams(e), tt.params)
		})
	}
}

func TestGuestLengthsAreBounded(t *testing.T) {
	ctx := context.Background()
	rt, l := newLoader(t)

	m := &testModule{
		types: []funcType{
			{params: []byte{i32, i32}, results: []byte{i32}},
			{params: []byte{i32, i32, i32, i32}, results: []byte{i32}},
			{results: []byte{i32}},
		},
		data: guestImage(),
	}
	wide := m.importFunc("rebLengthedTextWide", 0)
	spellInto := m.importFunc("rebSpellInto", 1)
	spellIntoWide := m.importFunc("rebSpellIntoWide", 1)

	// 0x80000001 units of two bytes wrap to two bytes in 32 bits.
	huge := int32(-0x7fffffff)
	m.funcs = []wasmFunc{
		{"wide_huge", 2, cat(i32Const(0), i32Const(huge), callFunc(wide))},
		{"spell_huge", 2, cat(i32Const(0), i32Const(0), i32Const(0x7fffffff), i32Const(32), callFunc(spellInto))},
		{"spell_wide_huge", 2, cat(i32Const(0), i32Const(0), i32Const(huge), i32Const(32), callFunc(spellIntoWide))},
		{"spell_query", 2, cat(i32Const(0), i32Const(0), i32Const(0), i32Const(32), callFunc(spellInto))},
	}

	_, err := l.LoadWASM(ctx, "lengths", m.encode())
	require.NoError(t, err)

	for _, export := range []string{"wide_huge", "spell_huge", "spell_wide_huge"} {
		t.Run(export, func(t *testing.T) {
			_, err := l.Call(ctx, "lengths", export)
			require.Error(t, err)
			f, ok := eval.AsFailure(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, string(errors.KindOutOfBounds), f.ID())
			assert.Equal(t, 1, rt.Stats().Frames)
		})
	}

	t.Run("size query skips the bounds check", func(t *testing.T) {
		_, err := l.Call(ctx, "lengths", "spell_query")
		f, ok := eval.AsFailure(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, string(errors.KindTypeMismatch), f.ID(), "42 is not text")
	})
}

func TestUnknownRecordTag(t *testing.T) {
	ctx := context.Background()
	_, l := newLoader(t)

	img := make([]byte, 64)
	copy(img, cat(record(tagSource, 0, 48, 3), record(0x07, 0, 0, 0), end))
	copy(img[48:], "1 +")

	m := &testModule{
		types: []funcType{{params: []byte{i32, i32}, results: []byte{i32}}, {results: []byte{i32}}},
		data:  img,
	}
	value := m.importFunc("rebValue", 0)
	m.funcs = []wasmFunc{{"bad_tag", 1, cat(i32Const(0), i32Const(0), callFunc(value))}}

	_, err := l.LoadWASM(ctx, "tags", m.encode())
	require.NoError(t, err)

	_, err = l.Call(ctx, "tags", "bad_tag")
	f, ok := eval.AsFailure(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, string(errors.KindInvalidData), f.ID())
	assert.Contains(t, f.Message(), "at args.1")
}
