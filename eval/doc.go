// Package eval is the small evaluator librebol drives through its boundary.
//
// It covers enough of the language to exercise the calling convention:
// inert values, quoting, words and set-words, groups, prefix actions,
// infix operators applied left to right, user functions with dynamic
// scoping, and the failure channel.
//
// Failures are returned as *Failure errors carrying an ERROR! value. A halt
// request is returned as an errors.KindHalted error instead, so TRAP and
// guarded calls do not swallow it.
package eval
