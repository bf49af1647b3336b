package eval

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

func params(spec string) []value.Param {
	fields := strings.Fields(spec)
	out := make([]value.Param, len(fields))
	for i, f := range fields {
		if strings.HasPrefix(f, "'") {
			out[i] = value.Param{Name: f[1:], Literal: true}
		} else {
			out[i] = value.Param{Name: f}
		}
	}
	return out
}

func (in *Interp) native(name, spec string, fn value.NativeFunc) {
	in.Define(name, params(spec), fn)
}

func (in *Interp) infix(name string, fn func(a, b *value.Value) (*value.Value, error)) {
	in.global[name] = value.NewAction(&value.Action{
		Name:   name,
		Params: params("left right"),
		Native: func(args []*value.Value) (*value.Value, error) { return fn(args[0], args[1]) },
		Infix:  true,
	})
}

func expectArg(action, param string, v *value.Value) *Failure {
	return Fail("expect-arg", "%s does not allow %s for its %s argument", action, v.TypeName(), param)
}

func block(action, param string, v *value.Value) ([]*value.Value, error) {
	if !v.Is(value.KindBlock) && !v.Is(value.KindGroup) {
		return nil, expectArg(action, param, v)
	}
	return v.Items, nil
}

var kindTests = map[string]value.Kind{
	"null?":    value.KindNull,
	"void?":    value.KindVoid,
	"blank?":   value.KindBlank,
	"logic?":   value.KindLogic,
	"integer?": value.KindInteger,
	"decimal?": value.KindDecimal,
	"char?":    value.KindChar,
	"text?":    value.KindText,
	"binary?":  value.KindBinary,
	"word?":    value.KindWord,
	"block?":   value.KindBlock,
	"error?":   value.KindError,
	"handle?":  value.KindHandle,
	"action?":  value.KindAction,
}

func (in *Interp) bindNatives() {
	in.global["true"] = value.Logic(true)
	in.global["false"] = value.Logic(false)
	in.global["blank"] = value.Blank()

	in.infix("+", func(a, b *value.Value) (*value.Value, error) { return arith("+", a, b) })
	in.infix("-", func(a, b *value.Value) (*value.Value, error) { return arith("-", a, b) })
	in.infix("*", func(a, b *value.Value) (*value.Value, error) { return arith("*", a, b) })
	in.infix("/", func(a, b *value.Value) (*value.Value, error) { return arith("/", a, b) })
	in.infix("=", func(a, b *value.Value) (*value.Value, error) { return value.Logic(value.Equal(a, b)), nil })
	in.infix("<>", func(a, b *value.Value) (*value.Value, error) { return value.Logic(!value.Equal(a, b)), nil })
	for _, op := range []string{"<", ">", "<=", ">="} {
		in.infix(op, func(a, b *value.Value) (*value.Value, error) { return compareOp(op, a, b) })
	}

	for name, op := range map[string]string{"add": "+", "subtract": "-", "multiply": "*", "divide": "/"} {
		in.native(name, "value1 value2", func(args []*value.Value) (*value.Value, error) {
			return arith(op, args[0], args[1])
		})
	}

	in.native("not", "value", func(args []*value.Value) (*value.Value, error) {
		t, err := Truthy(args[0])
		return value.Logic(!t), err
	})
	in.native("did", "value", func(args []*value.Value) (*value.Value, error) {
		t, err := Truthy(args[0])
		return value.Logic(t), err
	})

	in.native("if", "condition branch", func(args []*value.Value) (*value.Value, error) {
		t, err := Truthy(args[0])
		if err != nil {
			return nil, err
		}
		if !t {
			return value.Null(), nil
		}
		return in.branch("if", args[1])
	})
	in.native("either", "condition true-branch false-branch", func(args []*value.Value) (*value.Value, error) {
		t, err := Truthy(args[0])
		if err != nil {
			return nil, err
		}
		if t {
			return in.branch("either", args[1])
		}
		return in.branch("either", args[2])
	})
	in.native("all", "block", func(args []*value.Value) (*value.Value, error) {
		items, err := block("all", "block", args[0])
		if err != nil {
			return nil, err
		}
		return in.allOf(items)
	})
	in.native("any", "block", func(args []*value.Value) (*value.Value, error) {
		items, err := block("any", "block", args[0])
		if err != nil {
			return nil, err
		}
		return in.anyOf(items)
	})
	in.native("while", "condition body", func(args []*value.Value) (*value.Value, error) {
		cond, err := block("while", "condition", args[0])
		if err != nil {
			return nil, err
		}
		body, err := block("while", "body", args[1])
		if err != nil {
			return nil, err
		}
		result := value.Null()
		for {
			c, err := in.Do(cond)
			if err != nil {
				return nil, err
			}
			t, err := Truthy(c)
			if err != nil {
				return nil, err
			}
			if !t {
				return result, nil
			}
			if result, err = in.Do(body); err != nil {
				return nil, err
			}
		}
	})
	in.native("repeat", "count body", func(args []*value.Value) (*value.Value, error) {
		if !args[0].Is(value.KindInteger) {
			return nil, expectArg("repeat", "count", args[0])
		}
		body, err := block("repeat", "body", args[1])
		if err != nil {
			return nil, err
		}
		result := value.Null()
		for i := int64(0); i < args[0].Int; i++ {
			if result, err = in.Do(body); err != nil {
				return nil, err
			}
		}
		return result, nil
	})

	in.native("the", "'value", func(args []*value.Value) (*value.Value, error) {
		return args[0], nil
	})
	in.native("quote", "value", func(args []*value.Value) (*value.Value, error) {
		return value.Quoted(args[0], 1), nil
	})
	in.native("unquote", "value", func(args []*value.Value) (*value.Value, error) {
		v, ok := value.Unquoted(args[0], 1)
		if !ok {
			return nil, expectArg("unquote", "value", args[0])
		}
		return v, nil
	})
	in.native("quotes-of", "value", func(args []*value.Value) (*value.Value, error) {
		return value.Integer(int64(args[0].Quotes)), nil
	})
	in.native("quoted?", "value", func(args []*value.Value) (*value.Value, error) {
		return value.Logic(args[0].Quotes > 0), nil
	})
	for name, kind := range kindTests {
		in.native(name, "value", func(args []*value.Value) (*value.Value, error) {
			return value.Logic(args[0].Is(kind)), nil
		})
	}

	in.native("fail", "reason", func(args []*value.Value) (*value.Value, error) {
		r := args[0]
		switch {
		case r.Is(value.KindError):
			return nil, FailValue(r)
		case r.Is(value.KindText):
			return nil, Fail("user", "%s", r.Str)
		}
		return nil, expectArg("fail", "reason", r)
	})
	in.native("trap", "code", func(args []*value.Value) (*value.Value, error) {
		items, err := block("trap", "code", args[0])
		if err != nil {
			return nil, err
		}
		if _, err := in.Do(items); err != nil {
			if f, ok := AsFailure(err); ok {
				return f.Value, nil
			}
			return nil, err
		}
		return value.Null(), nil
	})
	in.native("make-error", "message", func(args []*value.Value) (*value.Value, error) {
		if !args[0].Is(value.KindText) {
			return nil, expectArg("make-error", "message", args[0])
		}
		return value.Error("user", args[0].Str), nil
	})

	in.native("print", "line", func(args []*value.Value) (*value.Value, error) {
		line := args[0]
		if line.Is(value.KindBlock) {
			r, err := in.reduce(line.Items)
			if err != nil {
				return nil, err
			}
			line = r
		}
		if _, err := fmt.Fprintln(in.stdout, value.Form(line)); err != nil {
			return nil, Fail("io", "%s", err.Error())
		}
		return value.Void(), nil
	})
	in.native("mold", "value", func(args []*value.Value) (*value.Value, error) {
		return value.Text(value.Mold(args[0])), nil
	})
	in.native("form", "value", func(args []*value.Value) (*value.Value, error) {
		return value.Text(value.Form(args[0])), nil
	})
	in.native("to-text", "value", func(args []*value.Value) (*value.Value, error) {
		if args[0].IsNull() {
			return nil, expectArg("to-text", "value", args[0])
		}
		if args[0].Is(value.KindBinary) {
			if !utf8.Valid(args[0].Bin) {
				return nil, Fail("bad-utf8", "binary is not valid UTF-8")
			}
			return value.Text(string(args[0].Bin)), nil
		}
		return value.Text(value.Form(args[0])), nil
	})
	in.native("join", "base value", func(args []*value.Value) (*value.Value, error) {
		base, v := args[0], args[1]
		switch {
		case base.Is(value.KindText):
			return value.Text(base.Str + value.Form(v)), nil
		case base.Is(value.KindBlock):
			items := append([]*value.Value{}, base.Items...)
			if v.Is(value.KindBlock) {
				items = append(items, v.Items...)
			} else {
				items = append(items, v)
			}
			return value.Block(items...), nil
		case base.Is(value.KindBinary):
			bin := append([]byte{}, base.Bin...)
			return value.Binary(appendBytes(bin, v)), nil
		}
		return nil, expectArg("join", "base", base)
	})
	in.native("append", "series value", func(args []*value.Value) (*value.Value, error) {
		s, v := args[0], args[1]
		switch {
		case s.Is(value.KindBlock) || s.Is(value.KindGroup):
			if v.Is(value.KindBlock) {
				s.Items = append(s.Items, v.Items...)
			} else {
				if v.IsNull() {
					return nil, Fail("bad-null", "null cannot be appended to a block")
				}
				s.Items = append(s.Items, v)
			}
		case s.Is(value.KindText):
			s.Str += value.Form(v)
		case s.Is(value.KindBinary):
			s.Bin = appendBytes(s.Bin, v)
		default:
			return nil, expectArg("append", "series", s)
		}
		return s, nil
	})
	in.native("length-of", "series", func(args []*value.Value) (*value.Value, error) {
		s := args[0]
		switch {
		case s.Is(value.KindText):
			return value.Integer(int64(utf8.RuneCountInString(s.Str))), nil
		case s.Is(value.KindBlock) || s.Is(value.KindGroup):
			return value.Integer(int64(len(s.Items))), nil
		case s.Is(value.KindBinary):
			return value.Integer(int64(len(s.Bin))), nil
		}
		return nil, expectArg("length-of", "series", s)
	})
	in.native("first", "series", func(args []*value.Value) (*value.Value, error) {
		s := args[0]
		switch {
		case s.Is(value.KindText):
			if s.Str == "" {
				return value.Null(), nil
			}
			r, _ := utf8.DecodeRuneInString(s.Str)
			return value.Char(r), nil
		case s.Is(value.KindBlock) || s.Is(value.KindGroup):
			if len(s.Items) == 0 {
				return value.Null(), nil
			}
			return s.Items[0], nil
		case s.Is(value.KindBinary):
			if len(s.Bin) == 0 {
				return value.Null(), nil
			}
			return value.Integer(int64(s.Bin[0])), nil
		}
		return nil, expectArg("first", "series", s)
	})
	in.native("type-of", "value", func(args []*value.Value) (*value.Value, error) {
		if args[0].IsNull() {
			return value.Null(), nil
		}
		return value.Word(args[0].TypeName()), nil
	})

	in.native("do", "source", func(args []*value.Value) (*value.Value, error) {
		src := args[0]
		switch {
		case src.Is(value.KindBlock) || src.Is(value.KindGroup):
			return in.Do(src.Items)
		case src.Is(value.KindText):
			return in.DoString(src.Str)
		case src.Is(value.KindAction):
			return in.Apply(src.Action, nil)
		}
		return src, nil
	})
	in.native("reduce", "block", func(args []*value.Value) (*value.Value, error) {
		items, err := block("reduce", "block", args[0])
		if err != nil {
			return nil, err
		}
		return in.reduce(items)
	})
	in.native("func", "spec body", func(args []*value.Value) (*value.Value, error) {
		return makeFunc(args[0], args[1])
	})
	in.native("void", "", func([]*value.Value) (*value.Value, error) {
		return value.Void(), nil
	})
	in.native("null", "", func([]*value.Value) (*value.Value, error) {
		return value.Null(), nil
	})
}

func (in *Interp) branch(action string, b *value.Value) (*value.Value, error) {
	items, err := block(action, "branch", b)
	if err != nil {
		return nil, err
	}
	return in.Do(items)
}

func (in *Interp) allOf(items []*value.Value) (*value.Value, error) {
	if err := in.enter(); err != nil {
		return nil, err
	}
	defer in.leave()

	result := value.Void()
	for pos := 0; pos < len(items); {
		v, next, err := in.step(items, pos)
		if err != nil {
			return nil, err
		}
		t, err := Truthy(v)
		if err != nil {
			return nil, err
		}
		if !t {
			return value.Null(), nil
		}
		result, pos = v, next
	}
	return result, nil
}

func (in *Interp) anyOf(items []*value.Value) (*value.Value, error) {
	if err := in.enter(); err != nil {
		return nil, err
	}
	defer in.leave()

	for pos := 0; pos < len(items); {
		v, next, err := in.step(items, pos)
		if err != nil {
			return nil, err
		}
		t, err := Truthy(v)
		if err != nil {
			return nil, err
		}
		if t {
			return v, nil
		}
		pos = next
	}
	return value.Null(), nil
}

func (in *Interp) reduce(items []*value.Value) (*value.Value, error) {
	if err := in.enter(); err != nil {
		return nil, err
	}
	defer in.leave()

	out := make([]*value.Value, 0, len(items))
	for pos := 0; pos < len(items); {
		v, next, err := in.step(items, pos)
		if err != nil {
			return nil, err
		}
		switch {
		case v.IsVoid():
		case v.IsNull():
			return nil, Fail("bad-null", "null cannot be put in a block")
		default:
			out = append(out, v)
		}
		pos = next
	}
	return value.Block(out...), nil
}

func makeFunc(spec, body *value.Value) (*value.Value, error) {
	if !spec.Is(value.KindBlock) {
		return nil, expectArg("func", "spec", spec)
	}
	if !body.Is(value.KindBlock) {
		return nil, expectArg("func", "body", body)
	}
	var ps []value.Param
	for _, item := range spec.Items {
		switch {
		case item.Is(value.KindWord):
			ps = append(ps, value.Param{Name: item.Str})
		case item.Kind == value.KindWord && item.Quotes == 1:
			ps = append(ps, value.Param{Name: item.Str, Literal: true})
		case item.Is(value.KindText):
			// description strings are allowed anywhere in the spec
		default:
			return nil, Fail("bad-func-def", "invalid parameter %s", value.Mold(item))
		}
	}
	return value.NewAction(&value.Action{Name: "func", Params: ps, Body: body}), nil
}

func appendBytes(bin []byte, v *value.Value) []byte {
	switch {
	case v.Is(value.KindBinary):
		return append(bin, v.Bin...)
	case v.Is(value.KindInteger):
		return append(bin, byte(v.Int))
	default:
		return append(bin, value.Form(v)...)
	}
}

func arith(op string, a, b *value.Value) (*value.Value, error) {
	if !isNumber(a) {
		return nil, expectArg(op, "value1", a)
	}
	if !isNumber(b) {
		return nil, expectArg(op, "value2", b)
	}
	if a.Kind == value.KindInteger && b.Kind == value.KindInteger {
		return intArith(op, a.Int, b.Int)
	}
	x, y := toFloat(a), toFloat(b)
	switch op {
	case "+":
		return value.Decimal(x + y), nil
	case "-":
		return value.Decimal(x - y), nil
	case "*":
		return value.Decimal(x * y), nil
	}
	if y == 0 {
		return nil, Fail("zero-divide", "attempt to divide by zero")
	}
	return value.Decimal(x / y), nil
}

func intArith(op string, a, b int64) (*value.Value, error) {
	overflow := func() (*value.Value, error) {
		return nil, FromError(errors.Overflow(errors.PhaseEval, op, fmt.Sprintf("%d %s %d", a, op, b), "integer!"))
	}
	switch op {
	case "+":
		if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
			return overflow()
		}
		return value.Integer(a + b), nil
	case "-":
		if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
			return overflow()
		}
		return value.Integer(a - b), nil
	case "*":
		if a == 0 || b == 0 {
			return value.Integer(0), nil
		}
		c := a * b
		if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return overflow()
		}
		return value.Integer(c), nil
	}
	if b == 0 {
		return nil, Fail("zero-divide", "attempt to divide by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return overflow()
	}
	if a%b == 0 {
		return value.Integer(a / b), nil
	}
	return value.Decimal(float64(a) / float64(b)), nil
}

func isNumber(v *value.Value) bool {
	return v.Is(value.KindInteger) || v.Is(value.KindDecimal)
}

func toFloat(v *value.Value) float64 {
	if v.Kind == value.KindInteger {
		return float64(v.Int)
	}
	return v.Dec
}

func compareOp(op string, a, b *value.Value) (*value.Value, error) {
	var c int
	switch {
	case isNumber(a) && isNumber(b):
		x, y := toFloat(a), toFloat(b)
		if a.Kind == value.KindInteger && b.Kind == value.KindInteger {
			c = cmpInt(a.Int, b.Int)
		} else {
			c = cmpFloat(x, y)
		}
	case a.Is(value.KindText) && b.Is(value.KindText):
		c = strings.Compare(strings.ToLower(a.Str), strings.ToLower(b.Str))
	case a.Is(value.KindChar) && b.Is(value.KindChar):
		c = cmpInt(int64(a.Char), int64(b.Char))
	default:
		return nil, Fail("invalid-compare", "cannot compare %s with %s", a.TypeName(), b.TypeName())
	}
	switch op {
	case "<":
		return value.Logic(c < 0), nil
	case ">":
		return value.Logic(c > 0), nil
	case "<=":
		return value.Logic(c <= 0), nil
	}
	return value.Logic(c >= 0), nil
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
