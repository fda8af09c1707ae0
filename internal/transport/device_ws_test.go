package transport

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/damianoneill/screenstream/internal/display"
	"github.com/damianoneill/screenstream/internal/wire"
)

func solidRGB565(w, h int, hi, lo byte) []byte {
	buf := make([]byte, 2*w*h)
	for i := 0; i < w*h; i++ {
		buf[i*2] = hi
		buf[i*2+1] = lo
	}
	return buf
}

func TestDeviceLoopKeyFrameBlitsAndAcks(t *testing.T) {
	w, h := 4, 4
	enc := codec.NewEncoder()
	mc := wire.NewMessageCodec()
	frame := enc.Encode(solidRGB565(w, h, 0xF8, 0x00), w, h)
	msg := mc.Encode(frame)

	conn := &fakeWSConn{inbound: []fakeWSMessage{{messageType: websocket.BinaryMessage, payload: msg}}}
	blitter := display.NewFramebufferBlitter(w, h)
	dec := codec.NewDecoder()

	dl := NewDeviceLoop(conn, dec, blitter)
	require.NoError(t, dl.Run())

	require.Len(t, conn.outbound, 2) // welcome, ACK
	assert.Equal(t, "welcome", string(conn.outbound[0]))
	assert.Equal(t, "ACK", string(conn.outbound[1]))
	assert.Equal(t, solidRGB565(w, h, 0xF8, 0x00), blitter.Snapshot())
}

func TestDeviceLoopNopSkipsBlit(t *testing.T) {
	w, h := 4, 4
	mc := wire.NewMessageCodec()
	msg := mc.Encode(codec.Frame{Kind: codec.KindNop, Width: w, Height: h})

	conn := &fakeWSConn{inbound: []fakeWSMessage{{messageType: websocket.BinaryMessage, payload: msg}}}
	blitter := display.NewFramebufferBlitter(w, h)
	dec := codec.NewDecoder()

	dl := NewDeviceLoop(conn, dec, blitter)
	require.NoError(t, dl.Run())

	assert.Equal(t, "ACK", string(conn.outbound[1]))
	assert.Equal(t, make([]byte, 2*w*h), blitter.Snapshot())
}

func TestDeviceLoopLegacyRawLZ4Blits(t *testing.T) {
	w, h := 4, 4
	enc := codec.NewEncoder()
	mc := wire.NewMessageCodec()

	// First establish a real reference/geometry via a proper KEY frame.
	keyFrame := enc.Encode(solidRGB565(w, h, 0x00, 0x00), w, h)
	keyMsg := mc.Encode(keyFrame)

	// A legacy host sends a bare lz4_size_prefixed(rgb565) buffer with no
	// magic or geometry header at all -- exactly a KEY frame's Compressed
	// payload on its own. Use a fresh encoder so this is a full-frame KEY
	// payload, not a delta against the prior frame above.
	legacyEnc := codec.NewEncoder()
	legacyFrame := legacyEnc.Encode(solidRGB565(w, h, 0xF8, 0x00), w, h)
	require.Equal(t, codec.KindKey, legacyFrame.Kind)
	legacyMsg := legacyFrame.Compressed

	conn := &fakeWSConn{inbound: []fakeWSMessage{
		{messageType: websocket.BinaryMessage, payload: keyMsg},
		{messageType: websocket.BinaryMessage, payload: legacyMsg},
	}}
	blitter := display.NewFramebufferBlitter(w, h)
	dec := codec.NewDecoder()

	dl := NewDeviceLoop(conn, dec, blitter, WithLegacyFrames())
	require.NoError(t, dl.Run())

	require.Len(t, conn.outbound, 3) // welcome, ACK (key), ACK (legacy)
	assert.Equal(t, "ACK", string(conn.outbound[1]))
	assert.Equal(t, "ACK", string(conn.outbound[2]))
	assert.Equal(t, solidRGB565(w, h, 0xF8, 0x00), blitter.Snapshot())
}

func TestDeviceLoopLegacyRawRGB565Blits(t *testing.T) {
	w, h := 4, 4
	enc := codec.NewEncoder()
	mc := wire.NewMessageCodec()

	keyFrame := enc.Encode(solidRGB565(w, h, 0x00, 0x00), w, h)
	keyMsg := mc.Encode(keyFrame)

	// A legacy host sends an ASCII "RGB565" prefix followed by raw,
	// uncompressed big-endian pixels at the device's known geometry.
	raw := solidRGB565(w, h, 0x07, 0xE0)
	legacyMsg := append([]byte("RGB565"), raw...)

	conn := &fakeWSConn{inbound: []fakeWSMessage{
		{messageType: websocket.BinaryMessage, payload: keyMsg},
		{messageType: websocket.BinaryMessage, payload: legacyMsg},
	}}
	blitter := display.NewFramebufferBlitter(w, h)
	dec := codec.NewDecoder()

	dl := NewDeviceLoop(conn, dec, blitter, WithLegacyFrames())
	require.NoError(t, dl.Run())

	require.Len(t, conn.outbound, 3) // welcome, ACK (key), ACK (legacy)
	assert.Equal(t, "ACK", string(conn.outbound[2]))
	assert.Equal(t, raw, blitter.Snapshot())
}

func TestDeviceLoopDeltaWithoutKeyNacks(t *testing.T) {
	w, h := 4, 4
	mc := wire.NewMessageCodec()
	msg := mc.Encode(codec.Frame{Kind: codec.KindDelta, Width: w, Height: h, Compressed: []byte{0, 0, 0, 0}})

	conn := &fakeWSConn{inbound: []fakeWSMessage{{messageType: websocket.BinaryMessage, payload: msg}}}
	blitter := display.NewFramebufferBlitter(w, h)
	dec := codec.NewDecoder()

	dl := NewDeviceLoop(conn, dec, blitter)
	require.NoError(t, dl.Run())

	assert.Equal(t, "NACK", string(conn.outbound[1]))
}
