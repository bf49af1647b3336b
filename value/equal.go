package value

import (
	"bytes"
	"strings"
)

// Equal reports lax equality: numbers compare across integer and decimal,
// text and words compare case-insensitively, blocks compare element-wise.
// Quote levels must match.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a.IsNull() && b.IsNull()
	}
	if a.Quotes != b.Quotes {
		return false
	}
	if a.Kind != b.Kind {
		if isNumber(a.Kind) && isNumber(b.Kind) {
			return asFloat(a) == asFloat(b)
		}
		return false
	}
	switch a.Kind {
	case KindNull, KindVoid, KindBlank:
		return true
	case KindLogic:
		return a.Logic == b.Logic
	case KindInteger:
		return a.Int == b.Int
	case KindDecimal:
		return a.Dec == b.Dec
	case KindChar:
		return a.Char == b.Char
	case KindText, KindWord, KindSetWord, KindGetWord:
		return strings.EqualFold(a.Str, b.Str)
	case KindBinary:
		return bytes.Equal(a.Bin, b.Bin)
	case KindBlock, KindGroup:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case KindError:
		return a.Err.ID == b.Err.ID && a.Err.Message == b.Err.Message
	case KindHandle:
		return a.Opaque == b.Opaque
	case KindAction:
		return a.Action == b.Action
	}
	return false
}

func isNumber(k Kind) bool {
	return k == KindInteger || k == KindDecimal
}

func asFloat(v *Value) float64 {
	if v.Kind == KindInteger {
		return float64(v.Int)
	}
	return v.Dec
}
