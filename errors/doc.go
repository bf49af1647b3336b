// Package errors provides structured error types for librebol.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the entry point that failed, the wanted
// and actual value kinds, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEval, errors.KindTypeMismatch).
//		Entry("rebUnboxInteger").
//		Want("integer!").
//		Got("text!").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseEval, "rebUnboxChar", "char!", "integer!")
//	err := errors.Usage(errors.PhaseOwnership, "rebRelease", "handle is managed")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
