package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/eval"
	"github.com/wippyai/librebol/resource"
	"github.com/wippyai/librebol/value"
)

// Runtime is one embedded interpreter instance and the boundary state that
// native callers reach it through. Every operation is a method; Startup
// returns the instance and Shutdown consumes it.
//
// A Runtime is not safe for concurrent use. Halt is the exception.
type Runtime struct {
	cfg    Config
	log    *zap.Logger
	interp *eval.Interp
	cells  *resource.Table

	frames    []*frame
	nextFrame resource.FrameID

	buffers     map[*Buffer]struct{}
	bufferBytes int
	mallocBytes int

	opaques []*value.Opaque
	natives []nativeCall
	spell   *spellCache

	shut bool
}

// Startup initializes a runtime instance.
func Startup(cfg *Config) (*Runtime, error) {
	c := cfg.withDefaults()

	rt := &Runtime{
		cfg:     c,
		log:     c.Logger,
		cells:   resource.NewTable(),
		buffers: make(map[*Buffer]struct{}),
		interp: eval.New(eval.Options{
			Stdout:   c.Stdout,
			MaxDepth: c.MaxDepth,
		}),
	}
	rt.pushFrame()

	rt.log.Info("runtime started",
		zap.Int("max_depth", c.MaxDepth),
		zap.Int("recycle_threshold", c.RecycleThreshold),
		zap.Bool("debug", c.Debug))
	return rt, nil
}

// Shutdown tears the instance down. With clean set, every handle is
// released, pending cleanup callbacks run, and unmanaged handles or
// unfreed buffers still alive are reported as a leak error. Without it the
// state is dropped as fast as possible and cleanups are skipped.
func (rt *Runtime) Shutdown(clean bool) error {
	if rt.shut {
		return errors.Shutdown("rebShutdown")
	}

	var leakErr error
	if clean {
		counts := rt.cells.Counts()
		leakedBuffers := 0
		leakedBytes := 0
		for b := range rt.buffers {
			leakedBuffers++
			leakedBytes += len(b.data)
		}
		if counts.Unmanaged > 0 || leakedBuffers > 0 {
			rt.log.Warn("leaks at shutdown",
				zap.Int("unmanaged_handles", counts.Unmanaged),
				zap.Int("buffers", leakedBuffers),
				zap.Int("buffer_bytes", leakedBytes))
			leakErr = errors.New(errors.PhaseLifecycle, errors.KindLeak).
				Entry("rebShutdown").
				Value(counts.Unmanaged+leakedBuffers).
				Detail("%d unmanaged handle(s) and %d buffer(s) still alive", counts.Unmanaged, leakedBuffers).
				Build()
		}

		for len(rt.frames) > 0 {
			rt.popFrame(rt.frames[len(rt.frames)-1], true, nil)
		}
		rt.cells.Clear()
		for _, o := range rt.opaques {
			o.Cleanup()
		}
	}

	rt.opaques = nil
	rt.frames = nil
	rt.buffers = nil
	rt.spell = nil
	_ = rt.cells.Close()
	rt.shut = true

	rt.log.Info("runtime shut down", zap.Bool("clean", clean), zap.Uint64("tick", rt.interp.Tick()))
	return leakErr
}

// enter is the API bookkeeping step every operation performs first.
func (rt *Runtime) enter(entry string) error {
	if rt.shut {
		return errors.Shutdown(entry)
	}
	return nil
}

// Enter performs the API-entry bookkeeping on behalf of a caller that
// reaches the runtime through a capability table.
func (rt *Runtime) Enter() error {
	return rt.enter("rebEnterApi_internal")
}

// Closed reports whether Shutdown has run.
func (rt *Runtime) Closed() bool {
	return rt.shut
}

// usage reports a contract violation. In debug mode it panics.
func (rt *Runtime) usage(entry, detail string) error {
	err := errors.Usage(errors.PhaseOwnership, entry, detail)
	rt.log.Error("usage error", zap.String("entry", entry), zap.String("detail", detail))
	if rt.cfg.Debug {
		panic(err)
	}
	return err
}

// Tick returns the evaluator step counter.
func (rt *Runtime) Tick() uint64 {
	return rt.interp.Tick()
}

// Halt requests cancellation of the evaluation in progress. It takes effect
// at the evaluator's next step. Safe to call from any goroutine.
func (rt *Runtime) Halt() {
	rt.interp.Halt()
}

// Debug reports whether usage errors panic.
func (rt *Runtime) Debug() bool {
	return rt.cfg.Debug
}

// Log returns the instance logger.
func (rt *Runtime) Log() *zap.Logger {
	return rt.log
}

// Stats is a snapshot of the runtime's accounting.
type Stats struct {
	ScopeBound      int
	Managed         int
	Unmanaged       int
	Buffers         int
	BufferBytes     int
	PendingCleanups int
	Frames          int
	Tick            uint64
}

// Handles returns the total number of live handles.
func (s Stats) Handles() int {
	return s.ScopeBound + s.Managed + s.Unmanaged
}

// Stats reports live handles per ownership state, live buffers and
// pending cleanup callbacks.
func (rt *Runtime) Stats() Stats {
	c := rt.cells.Counts()
	pending := 0
	for _, o := range rt.opaques {
		if o.Pending() {
			pending++
		}
	}
	return Stats{
		ScopeBound:      c.ScopeBound,
		Managed:         c.Managed,
		Unmanaged:       c.Unmanaged,
		Buffers:         len(rt.buffers),
		BufferBytes:     rt.bufferBytes,
		PendingCleanups: pending,
		Frames:          len(rt.frames),
		Tick:            rt.interp.Tick(),
	}
}

// subscription gives an observer a comparable identity, so function
// observers can be removed again.
type subscription struct {
	o resource.Observer
}

func (s *subscription) OnResourceEvent(e resource.Event) { s.o.OnResourceEvent(e) }

// Subscribe registers an observer for handle lifecycle events. The
// returned function removes it.
func (rt *Runtime) Subscribe(o resource.Observer) (cancel func()) {
	s := &subscription{o: o}
	rt.cells.Subscribe(s)
	return func() { rt.cells.Unsubscribe(s) }
}

// Interp exposes the evaluator, for hosts that bind natives directly.
func (rt *Runtime) Interp() *eval.Interp {
	return rt.interp
}
