package extension

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/lib"
	"github.com/wippyai/librebol/runtime"
)

const (
	// InitExport is run once at load time when a guest exports it.
	InitExport = "rx_init"

	// NativePrefix marks guest exports bound as natives. The rest of the
	// export name, with underscores turned into dashes, is the word.
	// Parameters and the result are handle ids.
	NativePrefix = "rx_native_"
)

// Guest is a loaded WebAssembly extension.
type Guest struct {
	name     string
	l        *Loader
	compiled wazero.CompiledModule
	mod      api.Module
	natives  []string
}

// Name returns the module name the guest was loaded under.
func (g *Guest) Name() string { return g.name }

// Natives returns the words bound from the guest's native exports.
func (g *Guest) Natives() []string {
	return append([]string(nil), g.natives...)
}

// Exports returns the guest's exported function names, sorted.
func (g *Guest) Exports() []string {
	defs := g.compiled.ExportedFunctions()
	out := make([]string, 0, len(defs))
	for name := range defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadWASM compiles and instantiates a core WebAssembly module that
// imports its entries from HostModule.
func (l *Loader) LoadWASM(ctx context.Context, name string, wasm []byte) (*Guest, error) {
	if _, dup := l.guests[name]; dup {
		return nil, errors.Usage(errors.PhaseExtension, "LoadWASM", fmt.Sprintf("extension %q already loaded", name))
	}
	if err := l.instantiateHost(ctx); err != nil {
		return nil, err
	}

	compiled, err := l.wasm.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExtension, errors.KindInvalidData, err, "compile "+name)
	}
	if err := checkImports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	mod, err := l.wasm.InstantiateModule(ctx, compiled, l.modCfg.WithName(name))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Wrap(errors.PhaseExtension, errors.KindLayout, err, "instantiate "+name)
	}

	g := &Guest{name: name, l: l, compiled: compiled, mod: mod}
	if mod.ExportedFunction(InitExport) != nil {
		if _, err := l.rt.InFrame(func() (*runtime.Handle, error) {
			_, err := g.call(ctx, InitExport)
			return nil, err
		}); err != nil {
			_ = mod.Close(ctx)
			l.log.Warn("extension init failed", zap.String("extension", name), zap.Error(err))
			return nil, initError(name, err)
		}
	}
	if err := g.bindNatives(); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	l.guests[name] = g
	l.log.Info("extension loaded",
		zap.String("extension", name),
		zap.String("kind", "wasm"),
		zap.Strings("natives", g.natives))
	return g, nil
}

// checkImports rejects guests importing entries the host does not export
// or importing them with the wrong core signature.
func checkImports(compiled wazero.CompiledModule) error {
	var missing []string
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != HostModule {
			continue
		}
		e, _, ok := lib.Lookup(name)
		if !ok || !e.Guest {
			missing = append(missing, module+"#"+name)
			continue
		}
		if !sameTypes(def.ParamTypes(), guestParams(e)) || !sameTypes(def.ResultTypes(), flatten(e.Results)) {
			return errors.Layout("%s imported as %s, host provides %s", name,
				signature(def.ParamTypes(), def.ResultTypes()),
				signature(guestParams(e), flatten(e.Results)))
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingEntriesError(missing)
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func signature(params, results []api.ValueType) string {
	name := func(ts []api.ValueType) string {
		parts := make([]string, len(ts))
		for i, t := range ts {
			parts[i] = api.ValueTypeName(t)
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return name(params) + "->" + name(results)
}

// bindNatives binds every NativePrefix export as an action.
func (g *Guest) bindNatives() error {
	var exports []string
	for name := range g.compiled.ExportedFunctions() {
		if strings.HasPrefix(name, NativePrefix) {
			exports = append(exports, name)
		}
	}
	sort.Strings(exports)

	for _, export := range exports {
		def := g.compiled.ExportedFunctions()[export]
		if !allI32(def.ParamTypes()) || len(def.ResultTypes()) > 1 || !allI32(def.ResultTypes()) {
			g.l.log.Warn("native export skipped: not a handle signature",
				zap.String("extension", g.name),
				zap.String("export", export))
			continue
		}
		word := strings.ReplaceAll(strings.TrimPrefix(export, NativePrefix), "_", "-")
		params := make([]string, len(def.ParamTypes()))
		for i := range params {
			params[i] = fmt.Sprintf("arg%d", i+1)
		}
		if err := g.l.rt.Native(word, params, g.native(export, params)); err != nil {
			return err
		}
		g.natives = append(g.natives, word)
	}
	return nil
}

func allI32(ts []api.ValueType) bool {
	for _, t := range ts {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	return true
}

// native calls export with the handle ids of the running native's
// arguments. It runs in the frame the evaluator pushed for the native.
func (g *Guest) native(export string, params []string) runtime.NativeFunc {
	return func(rt *runtime.Runtime) (*runtime.Handle, error) {
		ids := make([]uint64, len(params))
		for i, p := range params {
			h, err := rt.Arg(p)
			if err != nil {
				return nil, err
			}
			ids[i] = handleID(h)
		}
		res, err := g.call(context.Background(), export, ids...)
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			return rt.Void(), nil
		}
		return guestHandle(rt, export, api.DecodeU32(res[0]))
	}
}

// call runs an export. A host-side failure recorded while the guest was
// unwinding is returned in place of wazero's error.
func (g *Guest) call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	fn := g.mod.ExportedFunction(export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseExtension, "export", export)
	}

	l := g.l
	prev := l.trapped
	l.trapped = nil
	defer func() { l.trapped = prev }()

	res, err := fn.Call(ctx, params...)
	if err != nil {
		if l.trapped != nil {
			return nil, l.trapped
		}
		return nil, errors.Wrap(errors.PhaseExtension, errors.KindTrap, err, g.name+"."+export)
	}
	return res, nil
}

// Call runs a guest export inside a fresh frame. Handles the guest creates
// are reclaimed when it returns, so handle ids among the results are only
// meaningful to the guest; use CallHandle to keep a returned handle.
func (g *Guest) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	var res []uint64
	_, err := g.l.rt.InFrame(func() (*runtime.Handle, error) {
		var err error
		res, err = g.call(ctx, export, params...)
		return nil, err
	})
	return res, err
}

// CallHandle runs an export whose single result is a handle id and hands
// that handle to the caller's frame.
func (g *Guest) CallHandle(ctx context.Context, export string, params ...uint64) (*runtime.Handle, error) {
	return g.l.rt.InFrame(func() (*runtime.Handle, error) {
		res, err := g.call(ctx, export, params...)
		if err != nil {
			return nil, err
		}
		if len(res) != 1 {
			return nil, errors.TypeMismatch(errors.PhaseExtension, export, "handle result", fmt.Sprintf("%d results", len(res)))
		}
		return guestHandle(g.l.rt, export, api.DecodeU32(res[0]))
	})
}

// Call runs export on the named guest.
func (l *Loader) Call(ctx context.Context, guest, export string, params ...uint64) ([]uint64, error) {
	g, ok := l.guests[guest]
	if !ok {
		return nil, errors.NotFound(errors.PhaseExtension, "extension", guest)
	}
	return g.Call(ctx, export, params...)
}
