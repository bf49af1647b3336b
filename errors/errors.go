package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the boundary the error occurred
type Phase string

const (
	PhaseScan      Phase = "scan"      // source fragment scanning
	PhaseEval      Phase = "eval"      // expression evaluation
	PhaseMarshal   Phase = "marshal"   // argument sequence marshalling
	PhaseOwnership Phase = "ownership" // handle state transitions
	PhaseBuffer    Phase = "buffer"    // materialization into native buffers
	PhaseAlloc     Phase = "alloc"     // foreign buffer allocation
	PhaseCodec     Phase = "codec"     // compression helpers
	PhaseTable     Phase = "table"     // entry-point table validation
	PhaseExtension Phase = "extension" // extension loading and calls
	PhaseLifecycle Phase = "lifecycle" // startup and shutdown
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch Kind = "type_mismatch"
	KindNotBound     Kind = "not_bound"
	KindUsage        Kind = "usage"
	KindNullResult   Kind = "null_result"
	KindInvalidUTF8  Kind = "invalid_utf8"
	KindInvalidData  Kind = "invalid_data"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindOverflow     Kind = "overflow"
	KindHalted       Kind = "halted"
	KindShutdown     Kind = "shutdown"
	KindOS           Kind = "os"
	KindUser         Kind = "user"
	KindMissingEnd   Kind = "missing_end"
	KindLayout       Kind = "layout"
	KindLeak         Kind = "leak"
	KindLimit        Kind = "limit"
	KindTrap         Kind = "trap"
	KindNotFound     Kind = "not_found"
	KindSyntax       Kind = "syntax"
	KindMissingEntry Kind = "missing_entry"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Entry  string
	Want   string
	Got    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Entry != "" {
		b.WriteString(" in ")
		b.WriteString(e.Entry)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Want != "" || e.Got != "" {
		b.WriteString(": ")
		if e.Want != "" && e.Got != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
			b.WriteString(", got ")
			b.WriteString(e.Got)
		} else if e.Want != "" {
			b.WriteString("want ")
			b.WriteString(e.Want)
		} else {
			b.WriteString("got ")
			b.WriteString(e.Got)
		}
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Entry sets the entry-point name
func (b *Builder) Entry(name string) *Builder {
	b.err.Entry = name
	return b
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Want sets the expected kind
func (b *Builder) Want(kind string) *Builder {
	b.err.Want = kind
	return b
}

// Got sets the actual kind
func (b *Builder) Got(kind string) *Builder {
	b.err.Got = kind
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// As is errors.As from the standard library, re-exported so callers do not
// need to alias two packages named errors.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, entry, want, got string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTypeMismatch,
		Entry: entry,
		Want:  want,
		Got:   got,
	}
}

// NullResult creates an error for an operation that needs a non-null value
func NullResult(phase Phase, entry string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullResult,
		Entry:  entry,
		Detail: "expression produced null",
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, entry string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Entry:  entry,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Usage creates a contract-violation error
func Usage(phase Phase, entry, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUsage,
		Entry:  entry,
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, entry string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Entry:  entry,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, entry string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Entry:  entry,
		Want:   target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// Limit creates an error for output exceeding a caller-provided maximum
func Limit(phase Phase, entry string, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLimit,
		Entry:  entry,
		Detail: fmt.Sprintf("output exceeds limit of %d bytes", limit),
		Value:  limit,
	}
}

// Shutdown creates an error for use of a runtime after shutdown
func Shutdown(entry string) *Error {
	return &Error{
		Phase:  PhaseLifecycle,
		Kind:   KindShutdown,
		Entry:  entry,
		Detail: "runtime has been shut down",
	}
}

// Halted creates the error returned when an evaluation is cancelled
func Halted() *Error {
	return &Error{
		Phase:  PhaseEval,
		Kind:   KindHalted,
		Detail: "evaluation halted",
	}
}

// Syntax creates a scanner error at a line and column
func Syntax(line, col int, detail string) *Error {
	return &Error{
		Phase:  PhaseScan,
		Kind:   KindSyntax,
		Path:   []string{fmt.Sprintf("%d:%d", line, col)},
		Detail: detail,
	}
}

// Layout creates an entry-point table mismatch error
func Layout(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseTable,
		Kind:   KindLayout,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingEntry represents a single guest import the host table cannot serve
type MissingEntry struct {
	Module string // e.g., "rebol"
	Name   string // e.g., "rebRescue"
}

// MissingEntriesError is returned when an extension imports entry points
// that the host does not export.
type MissingEntriesError struct {
	Entries []MissingEntry
}

// NewMissingEntriesError creates an error from a list of "module#name" strings
func NewMissingEntriesError(imports []string) *MissingEntriesError {
	result := &MissingEntriesError{
		Entries: make([]MissingEntry, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, name := parseImportKey(imp)
		result.Entries = append(result.Entries, MissingEntry{
			Module: mod,
			Name:   name,
		})
	}
	return result
}

func parseImportKey(key string) (module, name string) {
	mod, fn, found := strings.Cut(key, "#")
	if found {
		return mod, fn
	}
	return key, ""
}

func (e *MissingEntriesError) Error() string {
	if len(e.Entries) == 0 {
		return "[extension] missing_entry: no entries specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d entry point(s):\n", len(e.Entries)))

	byModule := make(map[string][]string)
	var order []string
	for _, imp := range e.Entries {
		if _, exists := byModule[imp.Module]; !exists {
			order = append(order, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], imp.Name)
	}

	for _, mod := range order {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byModule[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingEntriesError) Is(target error) bool {
	_, ok := target.(*MissingEntriesError)
	return ok
}
