package runtime

import (
	"github.com/wippyai/librebol/codec"
)

// DeflateAlloc compresses in as raw DEFLATE into a foreign buffer.
func (rt *Runtime) DeflateAlloc(in []byte) (*Buffer, error) {
	return rt.codecAlloc("rebDeflateAlloc", func() ([]byte, error) { return codec.Deflate(in) })
}

// ZdeflateAlloc compresses in as zlib into a foreign buffer.
func (rt *Runtime) ZdeflateAlloc(in []byte) (*Buffer, error) {
	return rt.codecAlloc("rebZdeflateAlloc", func() ([]byte, error) { return codec.Zdeflate(in) })
}

// GzipAlloc compresses in as gzip into a foreign buffer.
func (rt *Runtime) GzipAlloc(in []byte) (*Buffer, error) {
	return rt.codecAlloc("rebGzipAlloc", func() ([]byte, error) { return codec.Gzip(in) })
}

// InflateAlloc decompresses raw DEFLATE. A negative max means unlimited;
// otherwise output beyond max bytes fails with a limit error.
func (rt *Runtime) InflateAlloc(in []byte, max int) (*Buffer, error) {
	return rt.codecAlloc("rebInflateAlloc", func() ([]byte, error) { return codec.Inflate(in, max) })
}

// ZinflateAlloc decompresses zlib.
func (rt *Runtime) ZinflateAlloc(in []byte, max int) (*Buffer, error) {
	return rt.codecAlloc("rebZinflateAlloc", func() ([]byte, error) { return codec.Zinflate(in, max) })
}

// GunzipAlloc decompresses gzip.
func (rt *Runtime) GunzipAlloc(in []byte, max int) (*Buffer, error) {
	return rt.codecAlloc("rebGunzipAlloc", func() ([]byte, error) { return codec.Gunzip(in, max) })
}

// DeflateDetectAlloc decompresses gzip, zlib or raw DEFLATE, chosen by the
// stream header.
func (rt *Runtime) DeflateDetectAlloc(in []byte, max int) (*Buffer, error) {
	return rt.codecAlloc("rebDeflateDetectAlloc", func() ([]byte, error) { return codec.InflateDetect(in, max) })
}

func (rt *Runtime) codecAlloc(entry string, fn func() ([]byte, error)) (*Buffer, error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	out, err := fn()
	if err != nil {
		return nil, err
	}
	return rt.allocate(out, false), nil
}
