package lib

import (
	"strings"

	"go.bytecodealliance.org/wit"
)

// Entry describes one slot of the entry-point table.
type Entry struct {
	// Name is the C-level entry name, e.g. "rebValue".
	Name string
	// Field is the Table field that holds the entry.
	Field string
	// Params and Results are the entry's signature as seen by a guest.
	// A handle is a u32 id; zero is null.
	Params  []wit.Type
	Results []wit.Type
	// Variadic entries take a trailing pointer to an argument-record list.
	Variadic bool
	// Guest reports whether the entry is exported to WebAssembly guests.
	Guest bool
}

// Signature renders the entry as a WIT function type.
func (e Entry) Signature() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range e.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(paramNames[i])
		b.WriteString(": ")
		b.WriteString(typeName(p))
	}
	if e.Variadic {
		if len(e.Params) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("args: list<arg>")
	}
	b.WriteString(")")
	if len(e.Results) == 1 {
		b.WriteString(" -> ")
		b.WriteString(typeName(e.Results[0]))
	}
	return b.String()
}

var paramNames = []string{"a", "b", "c", "d"}

func typeName(t wit.Type) string {
	switch t := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.U16:
		return "u16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if l, ok := t.Kind.(*wit.List); ok {
			return "list<" + typeName(l.Type) + ">"
		}
	}
	return "unknown"
}

var (
	handle = wit.U32{}
	quotes = wit.U8{}
	bytes  = &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
	units  = &wit.TypeDef{Kind: &wit.List{Type: wit.U16{}}}
)

func types(t ...wit.Type) []wit.Type { return t }

// host entries are not reachable from guests.
func host(name, field string) Entry {
	return Entry{Name: name, Field: field}
}

func guest(name, field string, params, results []wit.Type) Entry {
	return Entry{Name: name, Field: field, Params: params, Results: results, Guest: true}
}

func variadic(name, field string, extra []wit.Type, results []wit.Type) Entry {
	return Entry{
		Name:     name,
		Field:    field,
		Params:   append(types(quotes), extra...),
		Results:  results,
		Variadic: true,
		Guest:    true,
	}
}

// entries is the table in ordinal order. Append only.
var entries = []Entry{
	host("rebEnterApi_internal", "EnterAPI"),
	host("rebMalloc", "Malloc"),
	host("rebRealloc", "Realloc"),
	host("rebFree", "Free"),
	host("rebRepossess", "Repossess"),
	host("rebStartup", "Startup"),
	host("rebShutdown", "Shutdown"),
	guest("rebTick", "Tick", nil, types(wit.U64{})),
	guest("rebVoid", "Void", nil, types(handle)),
	guest("rebBlank", "Blank", nil, types(handle)),
	guest("rebLogic", "Logic", types(wit.Bool{}), types(handle)),
	guest("rebChar", "Char", types(wit.Char{}), types(handle)),
	guest("rebInteger", "Integer", types(wit.S64{}), types(handle)),
	guest("rebDecimal", "Decimal", types(wit.F64{}), types(handle)),
	guest("rebSizedBinary", "SizedBinary", types(bytes), types(handle)),
	guest("rebUninitializedBinary_internal", "UninitializedBinary", types(wit.U32{}), types(handle)),
	host("rebBinaryHead_internal", "BinaryHead"),
	host("rebBinaryAt_internal", "BinaryAt"),
	guest("rebBinarySizeAt_internal", "BinarySizeAt", types(handle), types(wit.U32{})),
	guest("rebSizedText", "SizedText", types(wit.String{}), types(handle)),
	guest("rebText", "Text", types(wit.String{}), types(handle)),
	guest("rebLengthedTextWide", "LengthedTextWide", types(units), types(handle)),
	host("rebTextWide", "TextWide"),
	host("rebHandle", "Handle"),
	host("rebArgR", "ArgR"),
	guest("rebArg", "Arg", types(quotes, wit.String{}), types(handle)),
	variadic("rebValue", "Value", nil, types(handle)),
	variadic("rebQuote", "Quote", nil, types(handle)),
	variadic("rebElide", "Elide", nil, nil),
	variadic("rebJumps", "Jumps", nil, nil),
	variadic("rebDid", "Did", nil, types(wit.Bool{})),
	variadic("rebNot", "Not", nil, types(wit.Bool{})),
	variadic("rebUnbox", "Unbox", nil, types(wit.S64{})),
	guest("rebUnbox0", "Unbox0", types(handle), types(wit.S64{})),
	variadic("rebUnboxInteger", "UnboxInteger", nil, types(wit.S64{})),
	guest("rebUnboxInteger0", "UnboxInteger0", types(handle), types(wit.S64{})),
	variadic("rebUnboxDecimal", "UnboxDecimal", nil, types(wit.F64{})),
	variadic("rebUnboxChar", "UnboxChar", nil, types(wit.Char{})),
	variadic("rebSpellInto", "SpellInto", types(bytes), types(wit.U32{})),
	host("rebSpell", "Spell"),
	variadic("rebSpellIntoWide", "SpellIntoWide", types(units), types(wit.U32{})),
	host("rebSpellWide", "SpellWide"),
	variadic("rebBytesInto", "BytesInto", types(bytes), types(wit.U32{})),
	host("rebBytes", "Bytes"),
	host("rebRescue", "Rescue"),
	host("rebRescueWith", "RescueWith"),
	guest("rebHalt", "Halt", nil, nil),
	host("rebQUOTING", "Quoting"),
	host("rebUNQUOTING", "Unquoting"),
	host("rebRELEASING", "Releasing"),
	guest("rebManage", "Manage", types(handle), types(handle)),
	guest("rebUnmanage", "Unmanage", types(handle), nil),
	guest("rebRelease", "Release", types(handle), nil),
	host("rebDeflateAlloc", "DeflateAlloc"),
	host("rebZdeflateAlloc", "ZdeflateAlloc"),
	host("rebGzipAlloc", "GzipAlloc"),
	host("rebInflateAlloc", "InflateAlloc"),
	host("rebZinflateAlloc", "ZinflateAlloc"),
	host("rebGunzipAlloc", "GunzipAlloc"),
	host("rebDeflateDetectAlloc", "DeflateDetectAlloc"),
	guest("rebFail_OS", "FailOS", types(wit.S32{}), nil),
}

// Entries returns the table layout in ordinal order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Lookup finds an entry by its C name.
func Lookup(name string) (Entry, int, bool) {
	for i, e := range entries {
		if e.Name == name {
			return e, i, true
		}
	}
	return Entry{}, -1, false
}
