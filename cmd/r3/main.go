package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/librebol/extension"
	"github.com/wippyai/librebol/lib"
	"github.com/wippyai/librebol/runtime"
	"github.com/wippyai/librebol/value"
)

func main() {
	var (
		expr      = flag.String("e", "", "Evaluate an expression and print the result")
		exts      = flag.String("ext", "", "WebAssembly extensions to load (file.wasm,file2.wasm)")
		callName  = flag.String("call", "", "Call a guest export ([extension.]export) after loading")
		showTable = flag.Bool("table", false, "Print the entry-point table and exit")
		tui       = flag.Bool("tui", false, "Interactive mode with TUI")
		wasi      = flag.Bool("wasi", false, "Provide wasi_snapshot_preview1 to extensions")
		debug     = flag.Bool("debug", false, "Log runtime diagnostics to stderr")
	)
	flag.Parse()

	if *showTable {
		printTable(os.Stdout)
		return
	}

	opts := options{exts: *exts, wasi: *wasi, debug: *debug}
	if err := run(*expr, *callName, *tui, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	rt     *runtime.Runtime
	loader *extension.Loader
}

type options struct {
	exts  string
	wasi  bool
	debug bool
}

func open(ctx context.Context, opts options) (*session, error) {
	log := zap.NewNop()
	if opts.debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		log = l
		extension.SetLogger(l)
	}

	rt, err := runtime.Startup(&runtime.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}
	cfg := &extension.Config{WASI: opts.wasi}
	if opts.wasi {
		cfg.Stdout, cfg.Stderr = os.Stdout, os.Stderr
	}
	loader, err := extension.NewLoader(ctx, rt, cfg)
	if err != nil {
		_ = rt.Shutdown(false)
		return nil, fmt.Errorf("loader: %w", err)
	}
	s := &session{rt: rt, loader: loader}

	if opts.exts != "" {
		for _, path := range strings.Split(opts.exts, ",") {
			data, err := os.ReadFile(path)
			if err != nil {
				s.close(ctx)
				return nil, fmt.Errorf("read extension: %w", err)
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if _, err := loader.LoadWASM(ctx, name, data); err != nil {
				s.close(ctx)
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.loader.Close(ctx)
	if err := s.rt.Shutdown(true); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
	}
}

func run(expr, callName string, tui bool, opts options) error {
	ctx := context.Background()

	s, err := open(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if callName != "" {
		if err := s.call(ctx, callName); err != nil {
			return err
		}
		if expr == "" {
			return nil
		}
	}

	switch {
	case expr != "":
		out, err := s.eval(expr)
		if err != nil {
			return err
		}
		printResult(os.Stdout, out)
		return nil
	case tui:
		return runInteractive(s)
	case term.IsTerminal(int(os.Stdin.Fd())):
		return s.repl()
	default:
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		_, err = s.eval(string(src))
		return err
	}
}

// call runs "export" on the only loaded guest or "guest.export" on a named one.
func (s *session) call(ctx context.Context, name string) error {
	guest, export, found := strings.Cut(name, ".")
	if !found {
		names := s.loader.Names()
		if len(names) != 1 {
			return fmt.Errorf("-call %s: name the extension, %d loaded", name, len(names))
		}
		guest, export = names[0], name
	}
	res, err := s.loader.Call(ctx, guest, export)
	if err != nil {
		return err
	}
	fmt.Printf("%s.%s -> %v\n", guest, export, res)
	return nil
}

// eval evaluates src in a frame of its own and renders the result.
func (s *session) eval(src string) (string, error) {
	var out string
	_, err := s.rt.InFrame(func() (*runtime.Handle, error) {
		h, err := s.rt.Value(runtime.S(src))
		if err != nil {
			return nil, err
		}
		v, err := s.rt.ValueOf(h)
		if err != nil {
			return nil, err
		}
		out = render(v)
		return nil, nil
	})
	return out, err
}

func render(v *value.Value) string {
	switch {
	case v.IsNull():
		return "; null"
	case v.IsVoid():
		return ""
	default:
		return "== " + value.Mold(v)
	}
}

func printResult(w io.Writer, out string) {
	if out != "" {
		fmt.Fprintln(w, out)
	}
}

func printTable(w io.Writer) {
	fmt.Fprintf(w, "entry-point table %d.%d\n\n", lib.HostVersion.Major, lib.HostVersion.Minor)
	for i, e := range lib.Entries() {
		where := "host "
		if e.Guest {
			where = "guest"
		}
		fmt.Fprintf(w, "%3d  %-32s %-20s %s  %s\n", i, e.Name, e.Field, where, e.Signature())
	}
}
