package runtime

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

// NativeFunc is a host function bound into the word context. It reads its
// arguments with Arg and runs in its own frame.
type NativeFunc func(rt *Runtime) (*Handle, error)

// nativeCall is one running host native and its gathered arguments.
type nativeCall struct {
	name   string
	params []string
	args   []*value.Value
}

// Native binds fn as an action named name. A parameter written as 'name
// takes the next item unevaluated.
func (rt *Runtime) Native(name string, params []string, fn NativeFunc) error {
	if err := rt.enter("Native"); err != nil {
		return err
	}
	ps := make([]value.Param, len(params))
	names := make([]string, len(params))
	for i, p := range params {
		literal := strings.HasPrefix(p, "'")
		p = strings.TrimPrefix(p, "'")
		if p == "" {
			return errors.Usage(errors.PhaseEval, "Native", "empty parameter name for "+name)
		}
		ps[i] = value.Param{Name: p, Literal: literal}
		names[i] = strings.ToLower(p)
	}
	rt.interp.Define(name, ps, func(args []*value.Value) (*value.Value, error) {
		return rt.callNative(name, names, args, fn)
	})
	rt.log.Debug("native bound", zap.String("name", name), zap.Strings("params", params))
	return nil
}

func (rt *Runtime) callNative(name string, params []string, args []*value.Value, fn NativeFunc) (result *value.Value, err error) {
	if err := rt.enter(name); err != nil {
		return nil, err
	}
	rt.natives = append(rt.natives, nativeCall{name: name, params: params, args: args})
	defer func() { rt.natives = rt.natives[:len(rt.natives)-1] }()

	f := rt.pushFrame()
	popped := false
	defer func() {
		if !popped {
			rt.popFrame(f, true, nil)
		}
	}()

	h, failure, err := guard(func(any) (*Handle, error) { return fn(rt) }, nil)
	popped = true
	if failure != nil {
		err = failure
	}
	if err != nil {
		rt.popFrame(f, true, nil)
		return nil, err
	}

	v, err := rt.cell(name, h)
	if err != nil {
		rt.popFrame(f, true, nil)
		return nil, err
	}
	rt.popFrame(f, false, nil)
	return v, nil
}

// Arg returns a handle to the named argument of the running host native.
func (rt *Runtime) Arg(name string) (*Handle, error) {
	v, err := rt.arg("rebArg", name)
	if err != nil {
		return nil, err
	}
	return rt.wrap(v), nil
}

// ArgQ is Arg with the result quoted one level.
func (rt *Runtime) ArgQ(name string) (*Handle, error) {
	v, err := rt.arg("rebArgQ", name)
	if err != nil {
		return nil, err
	}
	return rt.wrap(value.Quoted(v, 1)), nil
}

// ArgR returns the named argument's value without creating a handle. The
// value must not be retained past the native's return.
func (rt *Runtime) ArgR(name string) (*value.Value, error) {
	return rt.arg("rebArgR", name)
}

// ArgRQ is ArgR with the result quoted one level.
func (rt *Runtime) ArgRQ(name string) (*value.Value, error) {
	v, err := rt.arg("rebArgRQ", name)
	if err != nil {
		return nil, err
	}
	return value.Quoted(v, 1), nil
}

func (rt *Runtime) arg(entry, name string) (*value.Value, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	if len(rt.natives) == 0 {
		return nil, rt.usage(entry, "no host native is running")
	}
	call := rt.natives[len(rt.natives)-1]
	key := strings.ToLower(name)
	for i, p := range call.params {
		if p == key {
			return call.args[i], nil
		}
	}
	return nil, errors.NotFound(errors.PhaseEval, "argument", name)
}
