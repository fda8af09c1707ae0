package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramebufferBlitterWritesRegion(t *testing.T) {
	b := NewFramebufferBlitter(4, 4)
	px := []byte{0xAA, 0xBB, 0xCC, 0xDD} // 2x1 pixels
	require.NoError(t, b.BlitRGB565(1, 1, 2, 1, px))

	snap := b.Snapshot()
	off := 2 * (1*4 + 1)
	assert.Equal(t, px, snap[off:off+4])
}

func TestFramebufferBlitterRejectsOutOfBounds(t *testing.T) {
	b := NewFramebufferBlitter(4, 4)
	err := b.BlitRGB565(3, 3, 2, 2, make([]byte, 8))
	require.Error(t, err)
}

func TestFramebufferBlitterRejectsWrongPayloadSize(t *testing.T) {
	b := NewFramebufferBlitter(4, 4)
	err := b.BlitRGB565(0, 0, 2, 2, make([]byte, 5))
	require.Error(t, err)
}

func TestFramebufferBlitterFullFrame(t *testing.T) {
	b := NewFramebufferBlitter(2, 2)
	px := make([]byte, 8)
	for i := range px {
		px[i] = byte(i)
	}
	require.NoError(t, b.BlitRGB565(0, 0, 2, 2, px))
	assert.Equal(t, px, b.Snapshot())
}
