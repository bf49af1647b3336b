package eval

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/scan"
	"github.com/wippyai/librebol/value"
)

// DefaultMaxDepth bounds nested evaluation.
const DefaultMaxDepth = 512

// Options configures an interpreter.
type Options struct {
	Stdout   io.Writer
	MaxDepth int
}

// Interp evaluates values against one word context. It is not safe for
// concurrent use, except for Halt and Tick.
type Interp struct {
	stdout   io.Writer
	global   map[string]*value.Value
	locals   []map[string]*value.Value
	maxDepth int
	depth    int
	tick     atomic.Uint64
	halt     atomic.Bool
}

// New creates an interpreter with the standard natives bound.
func New(opts Options) *Interp {
	in := &Interp{
		stdout:   opts.Stdout,
		global:   make(map[string]*value.Value),
		maxDepth: opts.MaxDepth,
	}
	if in.stdout == nil {
		in.stdout = os.Stdout
	}
	if in.maxDepth <= 0 {
		in.maxDepth = DefaultMaxDepth
	}
	in.bindNatives()
	return in
}

// Tick returns the number of evaluation steps taken so far.
func (in *Interp) Tick() uint64 {
	return in.tick.Load()
}

// Halt requests cancellation. The evaluation in progress stops at its next
// step with a halted error. Safe to call from any goroutine.
func (in *Interp) Halt() {
	in.halt.Store(true)
}

// Stdout returns the writer PRINT uses.
func (in *Interp) Stdout() io.Writer {
	return in.stdout
}

// Lookup finds a word's binding, innermost function frame first.
func (in *Interp) Lookup(name string) (*value.Value, bool) {
	key := strings.ToLower(name)
	for i := len(in.locals) - 1; i >= 0; i-- {
		if v, ok := in.locals[i][key]; ok {
			return v, true
		}
	}
	v, ok := in.global[key]
	return v, ok
}

// Set binds a word. A word already bound in an active function frame is
// updated there; anything else goes to the global context.
func (in *Interp) Set(name string, v *value.Value) {
	key := strings.ToLower(name)
	for i := len(in.locals) - 1; i >= 0; i-- {
		if _, ok := in.locals[i][key]; ok {
			in.locals[i][key] = v
			return
		}
	}
	in.global[key] = v
}

// Define binds a Go function as a prefix action.
func (in *Interp) Define(name string, params []value.Param, fn value.NativeFunc) {
	in.global[strings.ToLower(name)] = value.NewAction(&value.Action{
		Name:   name,
		Params: params,
		Native: fn,
	})
}

// Words calls fn for every bound value, global and local.
func (in *Interp) Words(fn func(name string, v *value.Value)) {
	for k, v := range in.global {
		fn(k, v)
	}
	for _, frame := range in.locals {
		for k, v := range frame {
			fn(k, v)
		}
	}
}

// DoString scans and evaluates source text.
func (in *Interp) DoString(src string) (*value.Value, error) {
	items, err := scan.String(src)
	if err != nil {
		return nil, err
	}
	return in.Do(items)
}

// Do evaluates items as a sequence of expressions and returns the value of
// the last one. An empty sequence yields void.
func (in *Interp) Do(items []*value.Value) (*value.Value, error) {
	if err := in.enter(); err != nil {
		return nil, err
	}
	defer in.leave()

	result := value.Void()
	pos := 0
	for pos < len(items) {
		v, next, err := in.step(items, pos)
		if err != nil {
			return nil, err
		}
		result, pos = v, next
	}
	return result, nil
}

func (in *Interp) enter() error {
	in.depth++
	if in.depth > in.maxDepth {
		in.depth--
		return Fail("stack-overflow", "evaluation nested deeper than %d", in.maxDepth)
	}
	return nil
}

func (in *Interp) leave() {
	in.depth--
}

// checkpoint counts one step and surfaces a pending halt.
func (in *Interp) checkpoint() error {
	in.tick.Add(1)
	if in.halt.Swap(false) {
		return errors.Halted()
	}
	return nil
}

// step evaluates one full expression starting at pos, including any infix
// operators that follow it, applied left to right.
func (in *Interp) step(items []*value.Value, pos int) (*value.Value, int, error) {
	v, pos, err := in.prefix(items, pos)
	if err != nil {
		return nil, pos, err
	}
	for pos < len(items) {
		act := in.infixAt(items[pos])
		if act == nil {
			break
		}
		if pos+1 >= len(items) {
			return nil, pos, Fail("need-arg", "%s is missing its right argument", act.Name)
		}
		right, next, err := in.prefix(items, pos+1)
		if err != nil {
			return nil, next, err
		}
		v, err = in.apply(act, []*value.Value{v, right})
		if err != nil {
			return nil, next, err
		}
		pos = next
	}
	return v, pos, nil
}

func (in *Interp) infixAt(item *value.Value) *value.Action {
	if !item.Is(value.KindWord) {
		return nil
	}
	b, ok := in.Lookup(item.Str)
	if !ok || !b.Is(value.KindAction) || !b.Action.Infix {
		return nil
	}
	return b.Action
}

func (in *Interp) prefix(items []*value.Value, pos int) (*value.Value, int, error) {
	if err := in.checkpoint(); err != nil {
		return nil, pos, err
	}
	item := items[pos]
	pos++

	if item.Quotes > 0 {
		v, _ := value.Unquoted(item, 1)
		return v, pos, nil
	}

	switch item.Kind {
	case value.KindGroup:
		v, err := in.Do(item.Items)
		return v, pos, err

	case value.KindWord:
		b, ok := in.Lookup(item.Str)
		if !ok {
			return nil, pos, Fail("not-bound", "%s has no value", item.Str)
		}
		if b.Is(value.KindAction) {
			if b.Action.Infix {
				return nil, pos, Fail("need-arg", "%s is missing its left argument", item.Str)
			}
			return in.invoke(b.Action, items, pos)
		}
		return b, pos, nil

	case value.KindSetWord:
		if pos >= len(items) {
			return nil, pos, Fail("need-value", "%s: needs a value", item.Str)
		}
		v, next, err := in.step(items, pos)
		if err != nil {
			return nil, next, err
		}
		in.Set(item.Str, v)
		return v, next, nil

	case value.KindGetWord:
		b, ok := in.Lookup(item.Str)
		if !ok {
			return nil, pos, Fail("not-bound", "%s has no value", item.Str)
		}
		return b, pos, nil
	}

	return item, pos, nil
}

func (in *Interp) invoke(act *value.Action, items []*value.Value, pos int) (*value.Value, int, error) {
	args := make([]*value.Value, len(act.Params))
	for i, p := range act.Params {
		if pos >= len(items) {
			return nil, pos, Fail("need-arg", "%s is missing its %s argument", act.Name, p.Name)
		}
		if p.Literal {
			args[i] = items[pos]
			pos++
			continue
		}
		v, next, err := in.step(items, pos)
		if err != nil {
			return nil, next, err
		}
		args[i], pos = v, next
	}
	v, err := in.apply(act, args)
	return v, pos, err
}

// Apply runs an action with already-gathered arguments.
func (in *Interp) Apply(act *value.Action, args []*value.Value) (*value.Value, error) {
	if len(args) != len(act.Params) {
		return nil, Fail("need-arg", "%s takes %d arguments, got %d", act.Name, len(act.Params), len(args))
	}
	return in.apply(act, args)
}

func (in *Interp) apply(act *value.Action, args []*value.Value) (*value.Value, error) {
	if err := in.enter(); err != nil {
		return nil, err
	}
	defer in.leave()

	if act.Native != nil {
		v, err := act.Native(args)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = value.Null()
		}
		return v, nil
	}

	frame := make(map[string]*value.Value, len(act.Params))
	for i, p := range act.Params {
		frame[strings.ToLower(p.Name)] = args[i]
	}
	in.locals = append(in.locals, frame)
	defer func() { in.locals = in.locals[:len(in.locals)-1] }()

	return in.Do(act.Body.Items)
}

// Truthy applies conditional truthiness: null, blank and false are false,
// void is an error, everything else is true.
func Truthy(v *value.Value) (bool, error) {
	if v == nil {
		return false, nil
	}
	if v.Quotes > 0 {
		return true, nil
	}
	switch v.Kind {
	case value.KindNull, value.KindBlank:
		return false, nil
	case value.KindLogic:
		return v.Logic, nil
	case value.KindVoid:
		return false, Fail("bad-void", "void is neither true nor false")
	}
	return true, nil
}
