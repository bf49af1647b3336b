package eval

import (
	"fmt"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

// Failure is an evaluation failure. It carries the ERROR! value that a
// guarded call turns into a handle.
type Failure struct {
	Value *value.Value
}

// Fail creates a failure with the given error id and message.
func Fail(id, format string, args ...any) *Failure {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Failure{Value: value.Error(id, msg)}
}

// FailValue raises an existing ERROR! value.
func FailValue(v *value.Value) *Failure {
	return &Failure{Value: value.Dequoted(v)}
}

// FromError converts any error into a failure. Failures pass through;
// structured errors keep their kind as the error id.
func FromError(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return Fail(string(e.Kind), "%s", e.Error())
	}
	return Fail("native", "%s", err.Error())
}

// ID returns the error id, e.g. "not-bound" or "user".
func (f *Failure) ID() string {
	return f.Value.Err.ID
}

// Message returns the human readable message.
func (f *Failure) Message() string {
	return f.Value.Err.Message
}

func (f *Failure) Error() string {
	return fmt.Sprintf("** %s error: %s", f.Value.Err.ID, f.Value.Err.Message)
}

// AsFailure reports whether err is, or wraps, a Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// IsHalted reports whether err is a halt request surfacing.
func IsHalted(err error) bool {
	return errors.KindOf(err) == errors.KindHalted
}
