package extension

import (
	"context"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/lib"
	"github.com/wippyai/librebol/runtime"
)

// Extension is a Go extension. Init receives the capability table and is
// the only way the extension reaches the runtime.
type Extension interface {
	Name() string
	Init(tbl *lib.Table) error
}

// Quitter is implemented by extensions that need a shutdown hook.
type Quitter interface {
	Quit(tbl *lib.Table) error
}

// Versioned is implemented by extensions built against a specific table
// layout. Extensions that do not implement it are assumed to match the
// host.
type Versioned interface {
	TableVersion() lib.Version
	TableNames() []string
}

// Config holds loader configuration.
type Config struct {
	// MemoryLimitPages caps each guest's linear memory in 64KiB pages.
	// 0 keeps wazero's default.
	MemoryLimitPages uint32

	// WASI instantiates wasi_snapshot_preview1 for guests built with
	// toolchains that expect it. Guest stdout and stderr go to Stdout
	// and Stderr; nil discards.
	WASI   bool
	Stdout io.Writer
	Stderr io.Writer
}

// Loader loads extensions into one runtime instance and hands each of
// them the same table.
type Loader struct {
	rt  *runtime.Runtime
	tbl *lib.Table
	log *zap.Logger

	wasm    wazero.Runtime
	modCfg  wazero.ModuleConfig
	host    bool
	trapped error

	exts   []Extension
	guests map[string]*Guest
}

// NewLoader creates a loader bound to rt. A nil cfg selects defaults.
func NewLoader(ctx context.Context, rt *runtime.Runtime, cfg *Config) (*Loader, error) {
	if rt == nil || rt.Closed() {
		return nil, errors.Shutdown("NewLoader")
	}

	wcfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		wcfg = wcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	l := &Loader{
		rt:     rt,
		tbl:    lib.New(rt),
		log:    Logger(),
		wasm:   wazero.NewRuntimeWithConfig(ctx, wcfg),
		modCfg: wazero.NewModuleConfig().WithStartFunctions(),
		guests: make(map[string]*Guest),
	}
	if cfg != nil && cfg.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, l.wasm); err != nil {
			_ = l.wasm.Close(ctx)
			return nil, errors.Wrap(errors.PhaseExtension, errors.KindLayout, err, "instantiate wasi")
		}
		if cfg.Stdout != nil {
			l.modCfg = l.modCfg.WithStdout(cfg.Stdout)
		}
		if cfg.Stderr != nil {
			l.modCfg = l.modCfg.WithStderr(cfg.Stderr)
		}
	}
	return l, nil
}

// Table returns the table handed to extensions.
func (l *Loader) Table() *lib.Table {
	return l.tbl
}

// LoadGo validates the table against the extension's expected layout and
// runs its Init inside a frame.
func (l *Loader) LoadGo(ext Extension) error {
	name := ext.Name()
	version, names := lib.HostVersion, []string(nil)
	if v, ok := ext.(Versioned); ok {
		version, names = v.TableVersion(), v.TableNames()
	}
	if err := l.tbl.Check(version, names); err != nil {
		return errors.Wrap(errors.PhaseExtension, errors.KindLayout, err, "extension "+name)
	}

	_, err := l.rt.InFrame(func() (*runtime.Handle, error) {
		return nil, ext.Init(l.tbl)
	})
	if err != nil {
		l.log.Warn("extension init failed", zap.String("extension", name), zap.Error(err))
		return initError(name, err)
	}

	l.exts = append(l.exts, ext)
	l.log.Info("extension loaded", zap.String("extension", name), zap.String("kind", "go"))
	return nil
}

// initError keeps the cause's kind; failures raised by the extension are
// traps.
func initError(name string, err error) error {
	kind := errors.KindOf(err)
	if kind == "" {
		kind = errors.KindTrap
	}
	return errors.Wrap(errors.PhaseExtension, kind, err, "init "+name)
}

// Guest returns a loaded WebAssembly extension by name.
func (l *Loader) Guest(name string) (*Guest, bool) {
	g, ok := l.guests[name]
	return g, ok
}

// Names lists loaded extensions, Go first in load order, then guests
// sorted by name.
func (l *Loader) Names() []string {
	out := make([]string, 0, len(l.exts)+len(l.guests))
	for _, e := range l.exts {
		out = append(out, e.Name())
	}
	guests := make([]string, 0, len(l.guests))
	for name := range l.guests {
		guests = append(guests, name)
	}
	sort.Strings(guests)
	return append(out, guests...)
}

// Close runs Quit hooks in reverse load order and releases guest modules.
// The runtime itself is left running.
func (l *Loader) Close(ctx context.Context) error {
	var first error
	for i := len(l.exts) - 1; i >= 0; i-- {
		q, ok := l.exts[i].(Quitter)
		if !ok {
			continue
		}
		if err := q.Quit(l.tbl); err != nil {
			l.log.Warn("extension quit failed", zap.String("extension", l.exts[i].Name()), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	l.exts = nil
	l.guests = map[string]*Guest{}
	if err := l.wasm.Close(ctx); err != nil && first == nil {
		first = err
	}
	return first
}
