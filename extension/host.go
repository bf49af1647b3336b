package extension

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/eval"
	"github.com/wippyai/librebol/lib"
	"github.com/wippyai/librebol/runtime"
)

// HostModule is the import module name guests link the table entries from.
const HostModule = "rebol"

// flatten lowers WIT types to core wasm value types. Strings and lists are
// a (pointer, length) pair in guest memory.
func flatten(types []wit.Type) []api.ValueType {
	var out []api.ValueType
	for _, t := range types {
		switch t := t.(type) {
		case wit.U64, wit.S64:
			out = append(out, api.ValueTypeI64)
		case wit.F32:
			out = append(out, api.ValueTypeF32)
		case wit.F64:
			out = append(out, api.ValueTypeF64)
		case wit.String:
			out = append(out, api.ValueTypeI32, api.ValueTypeI32)
		case *wit.TypeDef:
			if _, ok := t.Kind.(*wit.List); ok {
				out = append(out, api.ValueTypeI32, api.ValueTypeI32)
			} else {
				out = append(out, api.ValueTypeI32)
			}
		default:
			out = append(out, api.ValueTypeI32)
		}
	}
	return out
}

// guestParams is the core parameter list of a guest entry. Variadic
// entries end with the argument-record pointer.
func guestParams(e lib.Entry) []api.ValueType {
	params := flatten(e.Params)
	if e.Variadic {
		params = append(params, api.ValueTypeI32)
	}
	return params
}

// call is one guest-to-host entry invocation. Parameters are consumed in
// order from the stack; the result goes to stack[0].
type call struct {
	rt    *runtime.Runtime
	tbl   *lib.Table
	entry string
	mem   *guestMemory
	stack []uint64
	pos   int
}

func (c *call) next() uint64 {
	v := c.stack[c.pos]
	c.pos++
	return v
}

func (c *call) u32() uint32    { return api.DecodeU32(c.next()) }
func (c *call) quotes() uint8  { return uint8(c.u32()) }
func (c *call) ret(v uint64)   { c.stack[0] = v }
func (c *call) retBool(b bool) { c.ret(boolWord(b)) }

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (c *call) memory() (*guestMemory, error) {
	if c.mem == nil {
		return nil, errors.Usage(errors.PhaseExtension, c.entry, "guest exports no memory")
	}
	return c.mem, nil
}

func (c *call) handle() (*runtime.Handle, error) {
	return guestHandle(c.rt, c.entry, c.u32())
}

func (c *call) list() (ptr, n uint32) {
	return c.u32(), c.u32()
}

func (c *call) bytes() ([]byte, error) {
	ptr, n := c.list()
	mem, err := c.memory()
	if err != nil {
		return nil, err
	}
	return mem.Read(ptr, n)
}

// out checks a guest output buffer of n elements of unit bytes. An empty
// buffer is a size query and needs no memory.
func (c *call) out(ptr, n, unit uint32) error {
	if n == 0 {
		return nil
	}
	mem, err := c.memory()
	if err != nil {
		return err
	}
	return mem.span(ptr, n, unit)
}

func (c *call) args() ([]runtime.Arg, error) {
	ptr := c.u32()
	mem, err := c.memory()
	if err != nil {
		return nil, err
	}
	return decodeArgs(c.rt, mem, c.entry, ptr)
}

func (c *call) retHandle(h *runtime.Handle, err error) error {
	if err != nil {
		return err
	}
	c.ret(handleID(h))
	return nil
}

// evaluating reads the quote count and argument records of a variadic
// entry that takes no other parameters.
func (c *call) evaluating() (uint8, []runtime.Arg, error) {
	q := c.quotes()
	args, err := c.args()
	return q, args, err
}

type handler func(c *call) error

// into implements the two-phase fill entries over a guest buffer.
func into(c *call, fill func(q uint8, buf []byte, args []runtime.Arg) (int, error)) error {
	q := c.quotes()
	ptr, n := c.list()
	if err := c.out(ptr, n, 1); err != nil {
		return err
	}
	args, err := c.args()
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	size, err := fill(q, buf, args)
	if err != nil {
		return err
	}
	if n > 0 {
		if err := c.mem.Write(ptr, buf[:min(size, int(n))]); err != nil {
			return err
		}
	}
	c.ret(uint64(uint32(size)))
	return nil
}

var handlers = map[string]handler{
	"Tick": func(c *call) error {
		c.ret(c.tbl.Tick())
		return nil
	},
	"Void":  func(c *call) error { return c.retHandle(c.tbl.Void(), nil) },
	"Blank": func(c *call) error { return c.retHandle(c.tbl.Blank(), nil) },
	"Logic": func(c *call) error { return c.retHandle(c.tbl.Logic(c.u32() != 0), nil) },
	"Char": func(c *call) error {
		return c.retHandle(c.tbl.Char(rune(c.u32())))
	},
	"Integer": func(c *call) error { return c.retHandle(c.tbl.Integer(int64(c.next())), nil) },
	"Decimal": func(c *call) error { return c.retHandle(c.tbl.Decimal(api.DecodeF64(c.next())), nil) },
	"SizedBinary": func(c *call) error {
		data, err := c.bytes()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.SizedBinary(data))
	},
	"UninitializedBinary": func(c *call) error {
		return c.retHandle(c.tbl.UninitializedBinary(int(c.u32())))
	},
	"BinarySizeAt": func(c *call) error {
		h, err := c.handle()
		if err != nil {
			return err
		}
		n, err := c.tbl.BinarySizeAt(h)
		if err != nil {
			return err
		}
		c.ret(uint64(uint32(n)))
		return nil
	},
	"SizedText": func(c *call) error {
		data, err := c.bytes()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.SizedText(data, len(data)))
	},
	"Text": func(c *call) error {
		data, err := c.bytes()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.Text(string(data)))
	},
	"LengthedTextWide": func(c *call) error {
		ptr, n := c.list()
		mem, err := c.memory()
		if err != nil {
			return err
		}
		units, err := mem.units(ptr, n)
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.LengthedTextWide(units, len(units)))
	},
	"Arg": func(c *call) error {
		q := c.quotes()
		name, err := c.bytes()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.Arg(q, string(name)))
	},
	"Value": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.Value(q, args...))
	},
	"Quote": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.Quote(q, args...))
	},
	"Elide": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		return c.tbl.Elide(q, args...)
	},
	"Jumps": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		c.tbl.Jumps(q, args...)
		return nil
	},
	"Did": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		b, err := c.tbl.Did(q, args...)
		if err != nil {
			return err
		}
		c.retBool(b)
		return nil
	},
	"Not": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		b, err := c.tbl.Not(q, args...)
		if err != nil {
			return err
		}
		c.retBool(b)
		return nil
	},
	"Unbox": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		n, err := c.tbl.Unbox(q, args...)
		if err != nil {
			return err
		}
		c.ret(api.EncodeI64(n))
		return nil
	},
	"Unbox0": func(c *call) error {
		h, err := c.handle()
		if err != nil {
			return err
		}
		n, err := c.tbl.Unbox0(h)
		if err != nil {
			return err
		}
		c.ret(api.EncodeI64(n))
		return nil
	},
	"UnboxInteger": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		n, err := c.tbl.UnboxInteger(q, args...)
		if err != nil {
			return err
		}
		c.ret(api.EncodeI64(n))
		return nil
	},
	"UnboxInteger0": func(c *call) error {
		h, err := c.handle()
		if err != nil {
			return err
		}
		n, err := c.tbl.UnboxInteger0(h)
		if err != nil {
			return err
		}
		c.ret(api.EncodeI64(n))
		return nil
	},
	"UnboxDecimal": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		f, err := c.tbl.UnboxDecimal(q, args...)
		if err != nil {
			return err
		}
		c.ret(api.EncodeF64(f))
		return nil
	},
	"UnboxChar": func(c *call) error {
		q, args, err := c.evaluating()
		if err != nil {
			return err
		}
		r, err := c.tbl.UnboxChar(q, args...)
		if err != nil {
			return err
		}
		c.ret(uint64(uint32(r)))
		return nil
	},
	"SpellInto": func(c *call) error {
		return into(c, func(q uint8, buf []byte, args []runtime.Arg) (int, error) {
			return c.tbl.SpellInto(q, buf, args...)
		})
	},
	"SpellIntoWide": func(c *call) error {
		q := c.quotes()
		ptr, n := c.list()
		if err := c.out(ptr, n, 2); err != nil {
			return err
		}
		args, err := c.args()
		if err != nil {
			return err
		}
		buf := make([]uint16, n)
		size, err := c.tbl.SpellIntoWide(q, buf, args...)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := c.mem.writeUnits(ptr, buf[:min(size, int(n))]); err != nil {
				return err
			}
		}
		c.ret(uint64(uint32(size)))
		return nil
	},
	"BytesInto": func(c *call) error {
		return into(c, func(q uint8, buf []byte, args []runtime.Arg) (int, error) {
			return c.tbl.BytesInto(q, buf, args...)
		})
	},
	"Halt": func(c *call) error {
		c.tbl.Halt()
		return nil
	},
	"Manage": func(c *call) error {
		h, err := c.handle()
		if err != nil {
			return err
		}
		return c.retHandle(c.tbl.Manage(h))
	},
	"Unmanage": func(c *call) error {
		h, err := c.handle()
		if err != nil {
			return err
		}
		_, err = c.tbl.Unmanage(h)
		return err
	},
	"Release": func(c *call) error {
		h, err := c.handle()
		if err != nil {
			return err
		}
		return c.tbl.Release(h)
	},
	"FailOS": func(c *call) error {
		c.tbl.FailOS(int(int32(c.u32())))
		return nil
	},
}

// instantiateHost builds the host module once per loader.
func (l *Loader) instantiateHost(ctx context.Context) error {
	if l.host {
		return nil
	}
	b := l.wasm.NewHostModuleBuilder(HostModule)
	exported := 0
	for _, e := range lib.Entries() {
		if !e.Guest {
			continue
		}
		fn, ok := handlers[e.Field]
		if !ok {
			return errors.Layout("guest entry %s has no handler", e.Name)
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(l.invoke(e.Name, fn), guestParams(e), flatten(e.Results)).
			WithName(e.Name).
			Export(e.Name)
		exported++
	}
	if _, err := b.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseExtension, errors.KindLayout, err, "instantiate host module")
	}
	l.host = true
	l.log.Debug("host module instantiated", zap.String("module", HostModule), zap.Int("entries", exported))
	return nil
}

// invoke adapts a handler to wazero. Any failure is recorded on the loader
// and re-panicked so wazero unwinds the guest.
func (l *Loader) invoke(entry string, fn handler) api.GoModuleFunction {
	return api.GoModuleFunc(func(_ context.Context, mod api.Module, stack []uint64) {
		c := &call{
			rt:    l.rt,
			tbl:   l.tbl,
			entry: entry,
			mem:   wrapMemory(mod.Memory()),
			stack: stack,
		}
		defer func() {
			if r := recover(); r != nil {
				panic(l.trap(entry, r))
			}
		}()
		if err := fn(c); err != nil {
			panic(err)
		}
	})
}

// trap records the failure behind a guest unwind. Halts stay halts; every
// other error becomes a failure. Foreign panics pass through untouched.
func (l *Loader) trap(entry string, r any) any {
	var err error
	switch v := r.(type) {
	case *eval.Failure:
		err = v
	case error:
		if eval.IsHalted(v) {
			err = v
		} else {
			err = eval.FromError(v)
		}
	default:
		return r
	}
	l.trapped = err
	l.log.Debug("guest entry failed", zap.String("entry", entry), zap.Error(err))
	return err
}
