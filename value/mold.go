package value

import (
	"math"
	"strconv"
	"strings"
)

const maxMoldDepth = 64

// Mold renders v as loadable source.
func Mold(v *Value) string {
	var b strings.Builder
	mold(&b, v, 0)
	return b.String()
}

// Form renders v for display: text and chars appear raw, blocks are formed
// element by element, errors show their message.
func Form(v *Value) string {
	if v == nil {
		return ""
	}
	if v.Quotes > 0 {
		return Mold(v)
	}
	switch v.Kind {
	case KindText:
		return v.Str
	case KindChar:
		return string(v.Char)
	case KindWord, KindSetWord, KindGetWord:
		return v.Str
	case KindBlock, KindGroup:
		parts := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			parts = append(parts, Form(it))
		}
		return strings.Join(parts, " ")
	case KindError:
		return v.Err.Message
	case KindNull, KindVoid:
		return ""
	}
	return Mold(v)
}

func mold(b *strings.Builder, v *Value, depth int) {
	if v == nil {
		b.WriteString("~null~")
		return
	}
	for i := 0; i < v.Quotes; i++ {
		b.WriteByte('\'')
	}
	switch v.Kind {
	case KindNull:
		b.WriteString("~null~")
	case KindVoid:
		b.WriteString("~void~")
	case KindBlank:
		b.WriteByte('_')
	case KindLogic:
		if v.Logic {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindInteger:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindDecimal:
		b.WriteString(FormatDecimal(v.Dec))
	case KindChar:
		b.WriteString("#\"")
		escapeRune(b, v.Char)
		b.WriteByte('"')
	case KindText:
		b.WriteByte('"')
		for _, r := range v.Str {
			escapeRune(b, r)
		}
		b.WriteByte('"')
	case KindBinary:
		b.WriteString("#{")
		const hex = "0123456789ABCDEF"
		for _, c := range v.Bin {
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
		b.WriteByte('}')
	case KindWord:
		b.WriteString(v.Str)
	case KindSetWord:
		b.WriteString(v.Str)
		b.WriteByte(':')
	case KindGetWord:
		b.WriteByte(':')
		b.WriteString(v.Str)
	case KindBlock, KindGroup:
		lb, rb := byte('['), byte(']')
		if v.Kind == KindGroup {
			lb, rb = '(', ')'
		}
		b.WriteByte(lb)
		if depth >= maxMoldDepth {
			b.WriteString("...")
		} else {
			for i, it := range v.Items {
				if i > 0 {
					b.WriteByte(' ')
				}
				mold(b, it, depth+1)
			}
		}
		b.WriteByte(rb)
	case KindError:
		b.WriteString("make error! [id: ")
		b.WriteString(v.Err.ID)
		b.WriteString(" message: ")
		mold(b, Text(v.Err.Message), depth+1)
		b.WriteByte(']')
	case KindHandle:
		b.WriteString("#[handle!]")
	case KindAction:
		b.WriteString("#[action! ")
		b.WriteString(v.Action.Name)
		b.WriteByte(']')
	default:
		b.WriteString("#[unknown!]")
	}
}

func escapeRune(b *strings.Builder, r rune) {
	switch r {
	case '"':
		b.WriteString("^\"")
	case '^':
		b.WriteString("^^")
	case '\n':
		b.WriteString("^/")
	case '\t':
		b.WriteString("^-")
	case 0:
		b.WriteString("^@")
	default:
		if r < 0x20 {
			b.WriteString("^(")
			b.WriteString(strconv.FormatInt(int64(r), 16))
			b.WriteByte(')')
			return
		}
		b.WriteRune(r)
	}
}

// FormatDecimal renders f so that it always reads back as a decimal.
func FormatDecimal(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1.#INF"
	case math.IsInf(f, -1):
		return "-1.#INF"
	case math.IsNaN(f):
		return "1.#NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
