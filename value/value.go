package value

import (
	"sync"
)

// Kind is the datatype of a cell, independent of its quote level.
type Kind uint8

const (
	KindNull Kind = iota
	KindVoid
	KindBlank
	KindLogic
	KindInteger
	KindDecimal
	KindChar
	KindText
	KindBinary
	KindWord
	KindSetWord
	KindGetWord
	KindBlock
	KindGroup
	KindError
	KindHandle
	KindAction
)

var kindNames = [...]string{
	KindNull:    "null",
	KindVoid:    "void!",
	KindBlank:   "blank!",
	KindLogic:   "logic!",
	KindInteger: "integer!",
	KindDecimal: "decimal!",
	KindChar:    "char!",
	KindText:    "text!",
	KindBinary:  "binary!",
	KindWord:    "word!",
	KindSetWord: "set-word!",
	KindGetWord: "get-word!",
	KindBlock:   "block!",
	KindGroup:   "group!",
	KindError:   "error!",
	KindHandle:  "handle!",
	KindAction:  "action!",
}

// String returns the datatype name, e.g. "integer!".
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown!"
}

// Value is one runtime cell. Which payload field is meaningful depends on
// Kind. Quotes counts literal quoting levels; a quoted value is the same
// payload with a higher level, never a wrapper.
type Value struct {
	Kind   Kind
	Quotes int

	Logic  bool
	Int    int64
	Dec    float64
	Char   rune
	Str    string   // text content or word spelling
	Bin    []byte   // binary content
	Items  []*Value // block and group elements
	Err    *ErrorInfo
	Opaque *Opaque
	Action *Action
}

// ErrorInfo is the payload of an ERROR! value.
type ErrorInfo struct {
	ID      string
	Message string
	Near    string
}

// Opaque is the payload of a HANDLE! value: native data plus an optional
// cleanup that runs exactly once when the value is reclaimed.
type Opaque struct {
	Data    any
	Length  int
	cleaner func(data any, length int)
	once    sync.Once
	done    bool
}

// NewOpaque creates a handle payload.
func NewOpaque(data any, length int, cleaner func(data any, length int)) *Opaque {
	return &Opaque{Data: data, Length: length, cleaner: cleaner}
}

// Cleanup runs the cleaner if it has not run yet. It reports whether this
// call ran it.
func (o *Opaque) Cleanup() bool {
	ran := false
	o.once.Do(func() {
		o.done = true
		if o.cleaner != nil {
			o.cleaner(o.Data, o.Length)
			ran = true
		}
	})
	return ran
}

// Pending reports whether a cleaner is attached and has not run.
func (o *Opaque) Pending() bool {
	return o.cleaner != nil && !o.done
}

// Param describes one action parameter.
type Param struct {
	Name    string
	Literal bool // take the next item unevaluated
}

// NativeFunc implements an action in Go.
type NativeFunc func(args []*Value) (*Value, error)

// Action is the payload of an ACTION! value.
type Action struct {
	Name   string
	Params []Param
	Native NativeFunc
	Body   *Value // block body for interpreted actions
	Infix  bool
}

var (
	null  = &Value{Kind: KindNull}
	void  = &Value{Kind: KindVoid}
	blank = &Value{Kind: KindBlank}
)

// Null returns the null value.
func Null() *Value { return null }

// Void returns the void value.
func Void() *Value { return void }

// Blank returns the blank value.
func Blank() *Value { return blank }

// Logic returns a LOGIC! value.
func Logic(b bool) *Value { return &Value{Kind: KindLogic, Logic: b} }

// Integer returns an INTEGER! value.
func Integer(i int64) *Value { return &Value{Kind: KindInteger, Int: i} }

// Decimal returns a DECIMAL! value.
func Decimal(f float64) *Value { return &Value{Kind: KindDecimal, Dec: f} }

// Char returns a CHAR! value.
func Char(r rune) *Value { return &Value{Kind: KindChar, Char: r} }

// Text returns a TEXT! value.
func Text(s string) *Value { return &Value{Kind: KindText, Str: s} }

// Binary returns a BINARY! value that adopts b without copying.
func Binary(b []byte) *Value { return &Value{Kind: KindBinary, Bin: b} }

// Word returns a WORD! value.
func Word(name string) *Value { return &Value{Kind: KindWord, Str: name} }

// SetWord returns a SET-WORD! value.
func SetWord(name string) *Value { return &Value{Kind: KindSetWord, Str: name} }

// GetWord returns a GET-WORD! value.
func GetWord(name string) *Value { return &Value{Kind: KindGetWord, Str: name} }

// Block returns a BLOCK! value holding items.
func Block(items ...*Value) *Value { return &Value{Kind: KindBlock, Items: items} }

// Group returns a GROUP! value holding items.
func Group(items ...*Value) *Value { return &Value{Kind: KindGroup, Items: items} }

// Error returns an ERROR! value.
func Error(id, message string) *Value {
	return &Value{Kind: KindError, Err: &ErrorInfo{ID: id, Message: message}}
}

// Handle returns a HANDLE! value around an opaque payload.
func Handle(o *Opaque) *Value { return &Value{Kind: KindHandle, Opaque: o} }

// NewAction returns an ACTION! value.
func NewAction(a *Action) *Value { return &Value{Kind: KindAction, Action: a} }

// Quoted returns v with n more quote levels. The payload is shared.
func Quoted(v *Value, n int) *Value {
	if n == 0 {
		return v
	}
	c := *v
	c.Quotes += n
	return &c
}

// Unquoted returns v with n fewer quote levels. It reports false if v has
// fewer than n levels.
func Unquoted(v *Value, n int) (*Value, bool) {
	if v.Quotes < n {
		return nil, false
	}
	if n == 0 {
		return v, true
	}
	c := *v
	c.Quotes -= n
	return &c, true
}

// Dequoted returns v with every quote level removed.
func Dequoted(v *Value) *Value {
	out, _ := Unquoted(v, v.Quotes)
	return out
}

// IsNull reports whether v is an unquoted null.
func (v *Value) IsNull() bool { return v == nil || (v.Kind == KindNull && v.Quotes == 0) }

// IsVoid reports whether v is an unquoted void.
func (v *Value) IsVoid() bool { return v != nil && v.Kind == KindVoid && v.Quotes == 0 }

// Is reports whether v is unquoted and of kind k.
func (v *Value) Is(k Kind) bool { return v != nil && v.Quotes == 0 && v.Kind == k }

// IsSeries reports whether v is a text, binary, block or group.
func (v *Value) IsSeries() bool {
	switch v.Kind {
	case KindText, KindBinary, KindBlock, KindGroup:
		return true
	}
	return false
}

// TypeName returns the datatype name as seen by TYPE-OF.
func (v *Value) TypeName() string {
	if v == nil {
		return KindNull.String()
	}
	if v.Quotes > 0 {
		return "quoted!"
	}
	return v.Kind.String()
}

// Walk calls fn for v and every value nested within it. A block reached
// twice is descended once.
func Walk(v *Value, fn func(*Value)) {
	seen := make(map[*Value]bool)
	var walk func(*Value)
	walk = func(v *Value) {
		if v == nil {
			return
		}
		fn(v)
		switch v.Kind {
		case KindBlock, KindGroup:
			if seen[v] {
				return
			}
			seen[v] = true
			for _, it := range v.Items {
				walk(it)
			}
		case KindAction:
			if v.Action != nil && v.Action.Body != nil {
				walk(v.Action.Body)
			}
		}
	}
	walk(v)
}
