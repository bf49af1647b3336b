// Package codec implements the compression service behind the runtime's
// deflate, zlib and gzip entry points.
package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/wippyai/librebol/errors"
)

// Format is a compressed stream envelope.
type Format uint8

const (
	// FormatRaw is a bare DEFLATE stream.
	FormatRaw Format = iota
	// FormatZlib is DEFLATE with the RFC 1950 header and Adler-32 trailer.
	FormatZlib
	// FormatGzip is DEFLATE with the RFC 1952 header and CRC-32 trailer.
	FormatGzip
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "deflate"
	case FormatZlib:
		return "zlib"
	case FormatGzip:
		return "gzip"
	}
	return "unknown"
}

// Unlimited disables the output size check of the inflate functions.
const Unlimited = -1

// Deflate compresses in as a raw DEFLATE stream.
func Deflate(in []byte) ([]byte, error) {
	return compress("deflate", in, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
}

// Zdeflate compresses in as a zlib stream.
func Zdeflate(in []byte) ([]byte, error) {
	return compress("zdeflate", in, func(w io.Writer) (io.WriteCloser, error) {
		return zlib.NewWriter(w), nil
	})
}

// Gzip compresses in as a gzip stream.
func Gzip(in []byte) ([]byte, error) {
	return compress("gzip", in, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	})
}

func compress(entry string, in []byte, open func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var buf bytes.Buffer
	w, err := open(&buf)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, entry)
	}
	if _, err := w.Write(in); err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, entry)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, entry)
	}
	return buf.Bytes(), nil
}

// Inflate decompresses a raw DEFLATE stream. If max is not negative, output
// longer than max bytes fails with a limit error.
func Inflate(in []byte, max int) ([]byte, error) {
	return decompress("inflate", flate.NewReader(bytes.NewReader(in)), max)
}

// Zinflate decompresses a zlib stream.
func Zinflate(in []byte, max int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, "zinflate")
	}
	return decompress("zinflate", r, max)
}

// Gunzip decompresses a gzip stream.
func Gunzip(in []byte, max int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, "gunzip")
	}
	return decompress("gunzip", r, max)
}

// Detect guesses the envelope of a compressed stream from its header.
func Detect(in []byte) Format {
	if len(in) >= 2 && in[0] == 0x1f && in[1] == 0x8b {
		return FormatGzip
	}
	// CMF/FLG: method 8, window <= 32K, header checksum divisible by 31.
	if len(in) >= 2 && in[0]&0x0f == 8 && in[0]>>4 <= 7 && (uint16(in[0])<<8|uint16(in[1]))%31 == 0 {
		return FormatZlib
	}
	return FormatRaw
}

// InflateDetect decompresses in after detecting its envelope.
func InflateDetect(in []byte, max int) ([]byte, error) {
	switch Detect(in) {
	case FormatGzip:
		return Gunzip(in, max)
	case FormatZlib:
		return Zinflate(in, max)
	}
	return Inflate(in, max)
}

func decompress(entry string, r io.ReadCloser, max int) ([]byte, error) {
	defer r.Close()

	src := io.Reader(r)
	if max >= 0 {
		src = io.LimitReader(r, int64(max)+1)
	}
	out, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, entry)
	}
	if max >= 0 && len(out) > max {
		return nil, errors.Limit(errors.PhaseCodec, entry, max)
	}
	return out, nil
}
