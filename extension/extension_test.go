package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/lib"
	"github.com/wippyai/librebol/runtime"
)

func newLoader(t *testing.T) (*runtime.Runtime, *Loader) {
	t.Helper()
	ctx := context.Background()
	rt, err := runtime.Startup(&runtime.Config{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	l, err := NewLoader(ctx, rt, &Config{MemoryLimitPages: 16})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = l.Close(ctx)
		if !rt.Closed() {
			_ = rt.Shutdown(false)
		}
	})
	return rt, l
}

type greeter struct {
	quits int
}

func (g *greeter) Name() string { return "greeter" }

func (g *greeter) Init(tbl *lib.Table) error {
	return tbl.Elide(0, runtime.S("greeting: {hello}"))
}

func (g *greeter) Quit(*lib.Table) error {
	g.quits++
	return nil
}

type pinned struct {
	greeter
	version lib.Version
	names   []string
}

func (p *pinned) TableVersion() lib.Version { return p.version }
func (p *pinned) TableNames() []string      { return p.names }

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) Init(tbl *lib.Table) error {
	return tbl.Elide(0, runtime.S("fail {nope}"))
}

func TestLoadGo(t *testing.T) {
	rt, l := newLoader(t)

	g := &greeter{}
	require.NoError(t, l.LoadGo(g))
	assert.Equal(t, []string{"greeter"}, l.Names())

	buf := make([]byte, 16)
	n, err := rt.SpellInto(buf, runtime.S("greeting"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, 1, rt.Stats().Frames)

	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, 1, g.quits)
}

func TestLoadGoChecksLayout(t *testing.T) {
	tests := []struct {
		name    string
		ext     *pinned
		wantErr bool
	}{
		{"older minor prefix", &pinned{version: lib.Version{Major: 2, Minor: 1}, names: lib.Names(10)}, false},
		{"newer minor", &pinned{version: lib.Version{Major: 2, Minor: lib.HostVersion.Minor + 1}}, true},
		{"other major", &pinned{version: lib.Version{Major: 3}}, true},
		{"reordered", &pinned{version: lib.HostVersion, names: []string{"rebMalloc"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, l := newLoader(t)
			err := l.LoadGo(tt.ext)
			if tt.wantErr {
				assert.Equal(t, errors.KindLayout, errors.KindOf(err))
				assert.Empty(t, l.Names())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadGoInitFailure(t *testing.T) {
	rt, l := newLoader(t)
	base := rt.Stats().Handles()

	err := l.LoadGo(failing{})
	require.Error(t, err)
	assert.Equal(t, errors.KindTrap, errors.KindOf(err))
	assert.Empty(t, l.Names())
	assert.Equal(t, base, rt.Stats().Handles())
}

func TestNewLoaderAfterShutdown(t *testing.T) {
	rt, err := runtime.Startup(&runtime.Config{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown(false))

	_, err = NewLoader(context.Background(), rt, nil)
	assert.Equal(t, errors.KindShutdown, errors.KindOf(err))
}
