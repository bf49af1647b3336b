// Package scan turns UTF-8 source fragments into values.
//
// Parts accepts a feed that interleaves source text with already-built
// values, which is how native callers mix literal code with live handles:
//
//	items, err := scan.Parts([]scan.Part{
//		scan.Source("append ["),
//		scan.Splice(v),
//		scan.Source("] 10"),
//	})
package scan
