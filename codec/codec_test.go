package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/librebol/errors"
)

var sample = bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 40)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		pack   func([]byte) ([]byte, error)
		unpack func([]byte, int) ([]byte, error)
		format Format
	}{
		{"deflate", Deflate, Inflate, FormatRaw},
		{"zlib", Zdeflate, Zinflate, FormatZlib},
		{"gzip", Gzip, Gunzip, FormatGzip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed, err := tt.pack(sample)
			require.NoError(t, err)
			assert.Less(t, len(packed), len(sample))
			assert.Equal(t, tt.format, Detect(packed))

			out, err := tt.unpack(packed, Unlimited)
			require.NoError(t, err)
			assert.Equal(t, sample, out)

			out, err = InflateDetect(packed, len(sample))
			require.NoError(t, err)
			assert.Equal(t, sample, out)
		})
	}
}

func TestDetect(t *testing.T) {
	z, err := Zdeflate(sample)
	require.NoError(t, err)
	g, err := Gzip(sample)
	require.NoError(t, err)

	assert.Equal(t, FormatZlib, Detect(z))
	assert.Equal(t, FormatGzip, Detect(g))
	assert.Equal(t, FormatRaw, Detect(nil))
	assert.Equal(t, "gzip", FormatGzip.String())
}

func TestLimit(t *testing.T) {
	packed, err := Gzip(sample)
	require.NoError(t, err)

	_, err = Gunzip(packed, 10)
	require.Error(t, err)
	assert.Equal(t, errors.KindLimit, errors.KindOf(err))

	out, err := Gunzip(packed, len(sample))
	require.NoError(t, err)
	assert.Len(t, out, len(sample))
}

func TestCorrupt(t *testing.T) {
	_, err := Gunzip([]byte{0x1f, 0x8b, 0x00}, Unlimited)
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidData, errors.KindOf(err))

	_, err = Zinflate([]byte{0x00, 0x01, 0x02}, Unlimited)
	require.Error(t, err)
}

func TestEmpty(t *testing.T) {
	packed, err := Deflate(nil)
	require.NoError(t, err)
	out, err := Inflate(packed, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
