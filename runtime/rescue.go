package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/librebol/eval"
)

// Dangerous is a callback that may fail, either by returning an error or by
// a Jumps panic.
type Dangerous func(opaque any) (*Handle, error)

// Rescuer receives the ERROR! handle of an intercepted failure and supplies
// the result of the guarded call.
type Rescuer func(err *Handle, opaque any) (*Handle, error)

// Rescue runs fn(opaque) in a fresh frame. A normal result is returned
// unchanged. A failure is returned as an ERROR! handle (see IsError) and
// every scope-bound handle fn created is reclaimed. A halt is not
// intercepted: it comes back as the error.
func (rt *Runtime) Rescue(fn Dangerous, opaque any) (*Handle, error) {
	return rt.rescue("rebRescue", fn, nil, opaque)
}

// RescueWith is Rescue, except that on failure rescuer decides the result.
// Whatever the rescuer returns or raises is passed through as is.
func (rt *Runtime) RescueWith(fn Dangerous, rescuer Rescuer, opaque any) (*Handle, error) {
	return rt.rescue("rebRescueWith", fn, rescuer, opaque)
}

func (rt *Runtime) rescue(entry string, fn Dangerous, rescuer Rescuer, opaque any) (*Handle, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}

	f := rt.pushFrame()
	popped := false
	defer func() {
		if !popped {
			rt.popFrame(f, true, nil)
		}
	}()

	h, failure, err := guard(fn, opaque)
	popped = true
	switch {
	case err != nil:
		rt.popFrame(f, true, nil)
		return nil, err

	case failure != nil:
		rt.popFrame(f, true, nil)
		rt.log.Debug("rescued failure",
			zap.String("entry", entry),
			zap.String("id", failure.ID()),
			zap.String("message", failure.Message()))
		errH := rt.wrap(failure.Value)
		if rescuer != nil {
			return rescuer(errH, opaque)
		}
		return errH, nil
	}

	rt.popFrame(f, false, h)
	return h, nil
}

// guard calls fn and sorts its outcome. Failures, returned or panicked, come
// back as failure; a halt comes back as err. Any other panic propagates.
func guard(fn Dangerous, opaque any) (h *Handle, failure *eval.Failure, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch x := r.(type) {
		case *eval.Failure:
			h, failure = nil, x
			return
		case error:
			if eval.IsHalted(x) {
				h, err = nil, x
				return
			}
		}
		panic(r)
	}()

	h, err = fn(opaque)
	if err != nil && !eval.IsHalted(err) {
		return nil, eval.FromError(err), nil
	}
	return h, nil, err
}
