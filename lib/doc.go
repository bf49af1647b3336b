// Package lib defines the entry-point table through which extensions reach
// an embedded runtime.
//
// # Layout
//
// The table is an ordered list of entries. Each entry has a C-level name
// (rebValue, rebSpellInto, ...) and a Go field in [Table]. The order is
// fixed and append only: the ordinal position of an entry never changes,
// and newer minor versions only add entries at the end.
//
//	tbl := lib.New(rt)
//	if err := tbl.Check(lib.HostVersion, lib.Names(-1)); err != nil {
//		return err
//	}
//	h, err := tbl.Value(0, runtime.S("1 + 2"))
//
// # Guest view
//
// [Entries] describes each slot with a WIT signature as seen by a
// WebAssembly guest. Entries marked Guest are exported by the extension
// loader's host module; variadic entries take a leading quote count and a
// trailing pointer to an argument-record list.
package lib
