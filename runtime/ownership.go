package runtime

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/librebol/resource"
)

// Manage detaches a scope-bound handle from its frame. The value then lives
// until a clean shutdown reclaims it, and the collector treats it as a
// root. It returns h for chaining.
func (rt *Runtime) Manage(h *Handle) (*Handle, error) {
	if err := rt.transition("rebManage", h, rt.cells.Manage); err != nil {
		return nil, err
	}
	return h, nil
}

// Unmanage hands a managed handle over to native code, which must Release
// it.
func (rt *Runtime) Unmanage(h *Handle) (*Handle, error) {
	if err := rt.transition("rebUnmanage", h, rt.cells.Unmanage); err != nil {
		return nil, err
	}
	return h, nil
}

// Rescope transfers an unmanaged handle back to the current frame as
// scope-bound, so that it is reclaimed when the frame exits instead of
// needing a Release. It returns h for chaining.
func (rt *Runtime) Rescope(h *Handle) (*Handle, error) {
	if err := rt.transition("Rescope", h, func(id resource.ID) error {
		return rt.cells.Rebind(id, rt.top().id)
	}); err != nil {
		return nil, err
	}
	return h, nil
}

// Release destroys an unmanaged handle immediately.
func (rt *Runtime) Release(h *Handle) error {
	return rt.transition("rebRelease", h, func(id resource.ID) error {
		_, err := rt.cells.Release(id)
		return err
	})
}

func (rt *Runtime) transition(entry string, h *Handle, fn func(resource.ID) error) error {
	if err := rt.enter(entry); err != nil {
		return err
	}
	if h == nil {
		return rt.usage(entry, "null handle")
	}
	if _, err := rt.cell(entry, h); err != nil {
		return err
	}
	err := fn(h.id)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, resource.ErrState):
		state, _, _ := rt.cells.State(h.id)
		return rt.usage(entry, "handle is "+state.String())
	case stderrors.Is(err, resource.ErrInvalid):
		return rt.usage(entry, "handle has been released")
	}
	return err
}

// releaseSpliced destroys a handle marked with R after its call. Managed
// handles must be unmanaged first.
func (rt *Runtime) releaseSpliced(entry string, h *Handle) error {
	if _, err := rt.cell(entry, h); err != nil {
		return err
	}
	state, _, ok := rt.cells.State(h.id)
	if !ok {
		return rt.usage(entry, "handle has been released")
	}
	if state == resource.Managed {
		return rt.usage(entry, "releasing a managed handle")
	}
	rt.cells.Remove(h.id)
	rt.log.Debug("released spliced handle", zap.Uint32("id", uint32(h.id)))
	return nil
}
