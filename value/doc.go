// Package value defines the runtime cells that librebol handles refer to.
//
// A Value carries a Kind, a payload and a quote level. Quoting is
// associative: Quoted(Quoted(v, 1), 1) has Quotes == 2 and the same payload,
// there is no wrapper cell an evaluator could observe.
package value
