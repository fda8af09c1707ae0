package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundtrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		make([]byte, 128), // all zero, highly compressible
	}
	r := rand.New(rand.NewSource(1))
	noise := make([]byte, 64)
	r.Read(noise)
	cases = append(cases, noise)

	for _, src := range cases {
		c := compressSizePrefixed(src)
		got, err := decompressSizePrefixed(c, len(src))
		require.NoError(t, err)
		assert.Equal(t, src, got)
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	src := make([]byte, 32)
	c := compressSizePrefixed(src)
	_, err := decompressSizePrefixed(c, 31)
	require.Error(t, err)
	assert.Equal(t, ErrorKindSizeMismatch, KindOf(err))
}

func TestDecompressShortBuffer(t *testing.T) {
	_, err := decompressSizePrefixed([]byte{1, 2}, 4)
	require.Error(t, err)
}
