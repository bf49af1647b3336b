// Package extension loads extensions into a runtime and hands each of them
// the entry-point table.
//
// Go extensions implement [Extension] and receive the [lib.Table] in Init:
//
//	loader, _ := extension.NewLoader(ctx, rt, nil)
//	err := loader.LoadGo(myExt)
//
// WebAssembly extensions are core modules that import table entries from
// the "rebol" host module. Handles cross the boundary as i32 ids, zero
// being null. Variadic entries take a quote count and a pointer to a list
// of 12-byte argument records ending in an END record:
//
//	tag u8 | quotes u8 | pad u16 | a u32 | b u32
//
//	0x00  spliced handle, a = id
//	0x01  UTF-8 source fragment, a = pointer, b = length
//	0x02  spliced handle released after the call, a = id
//	0x80  END
//
// A guest exporting rx_init has it run at load time. Exports named
// rx_native_<word> taking and returning handle ids are bound as natives.
package extension
