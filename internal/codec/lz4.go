package codec

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// compressSizePrefixed LZ4-compresses src and prepends a 4-byte
// little-endian decompressed-length header, matching the
// lz4_size_prefixed wire format (§6: "a 4-byte little-endian
// decompressed-length header and the LZ4 block").
func compressSizePrefixed(src []byte) []byte {
	buf := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(src)))

	if len(src) == 0 {
		return buf[:4]
	}

	var c lz4.Compressor
	n, err := c.CompressBlock(src, buf[4:])
	if err != nil {
		// CompressBlock only errors when dst is smaller than
		// CompressBlockBound(len(src)), which buf already satisfies.
		panic(errors.Wrap(err, "codec: lz4 compress"))
	}
	if n == 0 {
		// Incompressible input: CompressBlock declines to emit a block
		// rather than grow the data. Fall back to a literals-only LZ4
		// block, a valid encoding any LZ4 reader accepts.
		n = copyAsLiteralBlock(src, buf[4:])
	}
	return buf[:4+n]
}

// copyAsLiteralBlock writes an LZ4 block consisting of a single literals
// run covering all of src, with no match -- the minimal valid encoding
// for data that does not compress. dst must have capacity for
// lz4.CompressBlockBound(len(src)).
func copyAsLiteralBlock(src, dst []byte) int {
	n := len(src)
	// Token byte: high nibble is the literal-length indicator.
	i := 0
	litLen := n
	tokenLitLen := litLen
	if tokenLitLen > 15 {
		tokenLitLen = 15
	}
	dst[i] = byte(tokenLitLen << 4)
	i++
	if litLen >= 15 {
		rem := litLen - 15
		for rem >= 255 {
			dst[i] = 255
			i++
			rem -= 255
		}
		dst[i] = byte(rem)
		i++
	}
	i += copy(dst[i:], src)
	return i
}

// decompressSizePrefixed reverses compressSizePrefixed, verifying the
// decompressed length matches wantLen exactly.
func decompressSizePrefixed(b []byte, wantLen int) ([]byte, error) {
	if len(b) < 4 {
		return nil, errors.Wrap(ErrDecompressFailure, "short buffer")
	}
	size := int(binary.LittleEndian.Uint32(b[:4]))
	if size != wantLen {
		return nil, errors.Wrapf(ErrSizeMismatch, "header says %d, want %d", size, wantLen)
	}
	if size == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(b[4:], dst)
	if err != nil {
		return nil, errors.Wrap(ErrDecompressFailure, err.Error())
	}
	if n != size {
		return nil, errors.Wrapf(ErrSizeMismatch, "decompressed %d bytes, want %d", n, size)
	}
	return dst, nil
}
