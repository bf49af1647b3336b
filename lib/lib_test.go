package lib

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/runtime"
)

func newTable(t *testing.T) (*runtime.Runtime, *Table) {
	t.Helper()
	rt, err := runtime.Startup(&runtime.Config{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if !rt.Closed() {
			_ = rt.Shutdown(false)
		}
	})
	return rt, New(rt)
}

// rlLib is the RL_LIB member order of rebol.h.
var rlLib = []string{
	"rebEnterApi_internal",
	"rebMalloc",
	"rebRealloc",
	"rebFree",
	"rebRepossess",
	"rebStartup",
	"rebShutdown",
	"rebTick",
	"rebVoid",
	"rebBlank",
	"rebLogic",
	"rebChar",
	"rebInteger",
	"rebDecimal",
	"rebSizedBinary",
	"rebUninitializedBinary_internal",
	"rebBinaryHead_internal",
	"rebBinaryAt_internal",
	"rebBinarySizeAt_internal",
	"rebSizedText",
	"rebText",
	"rebLengthedTextWide",
	"rebTextWide",
	"rebHandle",
	"rebArgR",
	"rebArg",
	"rebValue",
	"rebQuote",
	"rebElide",
	"rebJumps",
	"rebDid",
	"rebNot",
	"rebUnbox",
	"rebUnbox0",
	"rebUnboxInteger",
	"rebUnboxInteger0",
	"rebUnboxDecimal",
	"rebUnboxChar",
	"rebSpellInto",
	"rebSpell",
	"rebSpellIntoWide",
	"rebSpellWide",
	"rebBytesInto",
	"rebBytes",
	"rebRescue",
	"rebRescueWith",
	"rebHalt",
	"rebQUOTING",
	"rebUNQUOTING",
	"rebRELEASING",
	"rebManage",
	"rebUnmanage",
	"rebRelease",
	"rebDeflateAlloc",
	"rebZdeflateAlloc",
	"rebGzipAlloc",
	"rebInflateAlloc",
	"rebZinflateAlloc",
	"rebGunzipAlloc",
	"rebDeflateDetectAlloc",
	"rebFail_OS",
}

func TestLayoutMatchesEntries(t *testing.T) {
	layout := Layout()
	require.Len(t, layout, len(rlLib))
	assert.Equal(t, rlLib, Names(-1))
	require.Len(t, entries, len(layout))
	for i, e := range entries {
		assert.Equal(t, e.Field, layout[i], "slot %d (%s)", i, e.Name)
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		assert.False(t, seen[e.Name], "duplicate %s", e.Name)
		seen[e.Name] = true
	}
}

func TestNewFillsEverySlot(t *testing.T) {
	_, tbl := newTable(t)
	v := reflect.ValueOf(tbl).Elem()
	for i := 0; i < v.NumField(); i++ {
		assert.False(t, v.Field(i).IsNil(), "field %s", v.Type().Field(i).Name)
	}
}

func TestCheck(t *testing.T) {
	_, tbl := newTable(t)

	tests := []struct {
		name    string
		table   func() *Table
		version Version
		names   []string
		wantErr bool
	}{
		{"full layout", func() *Table { return tbl }, HostVersion, Names(-1), false},
		{"prefix layout", func() *Table { return tbl }, HostVersion, Names(8), false},
		{"no names", func() *Table { return tbl }, HostVersion, nil, false},
		{"older minor", func() *Table { return tbl }, Version{2, 50}, nil, false},
		{"newer minor", func() *Table { return tbl }, Version{2, HostVersion.Minor + 1}, nil, true},
		{"other major", func() *Table { return tbl }, Version{1, 0}, nil, true},
		{"renamed slot", func() *Table { return tbl }, HostVersion, []string{"rebEnterApi_internal", "rebAlloc"}, true},
		{"too many names", func() *Table { return tbl }, HostVersion, append(Names(-1), "rebExtra"), true},
		{"missing slot", func() *Table {
			cp := *tbl
			cp.Spell = nil
			return &cp
		}, HostVersion, nil, true},
		{"nil table", func() *Table { return nil }, HostVersion, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table().Check(tt.version, tt.names)
			if tt.wantErr {
				assert.Equal(t, errors.KindLayout, errors.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	e, i, ok := Lookup("rebValue")
	require.True(t, ok)
	assert.Equal(t, "Value", e.Field)
	assert.True(t, e.Variadic)
	assert.Equal(t, "rebValue", Names(-1)[i])

	_, i, ok = Lookup("rebNothing")
	assert.False(t, ok)
	assert.Equal(t, -1, i)
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"rebTick", "func() -> u64"},
		{"rebInteger", "func(a: s64) -> u32"},
		{"rebValue", "func(a: u8, args: list<arg>) -> u32"},
		{"rebSpellInto", "func(a: u8, b: list<u8>, args: list<arg>) -> u32"},
		{"rebLengthedTextWide", "func(a: list<u16>) -> u32"},
		{"rebRelease", "func(a: u32)"},
		{"rebMalloc", "func()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Signature())
		})
	}
}

func TestEntriesIsACopy(t *testing.T) {
	es := Entries()
	es[0].Name = "changed"
	assert.Equal(t, "rebEnterApi_internal", Entries()[0].Name)
}

func TestDispatchThroughTable(t *testing.T) {
	rt, tbl := newTable(t)

	require.NoError(t, tbl.EnterAPI())

	h, err := tbl.Value(0, runtime.S("1 +"), runtime.V(tbl.Integer(41)))
	require.NoError(t, err)
	n, err := tbl.Unbox0(h)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	q, err := tbl.Value(2, runtime.S("the"), runtime.V(tbl.Integer(1)))
	require.NoError(t, err)
	v, err := rt.ValueOf(q)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Quotes)

	ok, err := tbl.Did(0, runtime.S("1 = 1"))
	require.NoError(t, err)
	assert.True(t, ok)

	buf := make([]byte, 8)
	size, err := tbl.SpellInto(0, buf, runtime.T("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:size]))

	managed, err := tbl.Manage(tbl.Integer(7))
	require.NoError(t, err)
	_, err = tbl.Unmanage(managed)
	require.NoError(t, err)
	require.NoError(t, tbl.Release(managed))

	require.NoError(t, tbl.Shutdown(true))
	assert.Equal(t, errors.KindShutdown, errors.KindOf(tbl.EnterAPI()))
}
