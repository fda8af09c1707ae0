package wire

import (
	"encoding/binary"

	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/pkg/errors"
)

// MessageCodec implements the WebSocket message framing: one CodecFrame
// maps to exactly one binary message, magic‖wBE‖hBE‖payload (payload
// absent for NOP). There is no multi-message batching.
type MessageCodec struct{}

// NewMessageCodec returns a MessageCodec. It carries no state; a single
// instance may be shared by any number of loops.
func NewMessageCodec() *MessageCodec { return &MessageCodec{} }

// Encode serialises a codec.Frame to one binary WebSocket message.
func (MessageCodec) Encode(f codec.Frame) []byte {
	magic := magicOf(f.Kind)
	out := make([]byte, MagicLen+4, MagicLen+4+len(f.Compressed))
	copy(out, magic[:])
	binary.BigEndian.PutUint16(out[MagicLen:], uint16(f.Width))
	binary.BigEndian.PutUint16(out[MagicLen+2:], uint16(f.Height))
	if f.Kind != codec.KindNop {
		out = append(out, f.Compressed...)
	}
	return out
}

// Decode parses one binary WebSocket message into a codec.Frame,
// demuxing on the leading 8-byte magic.
func (MessageCodec) Decode(msg []byte) (codec.Frame, error) {
	if len(msg) < MagicLen+4 {
		return codec.Frame{}, errors.New("wire: message shorter than header")
	}
	kind, ok := kindOfMagic(msg[:MagicLen])
	if !ok {
		return codec.Frame{}, errors.Errorf("wire: unrecognised magic %q", msg[:MagicLen])
	}
	w := int(binary.BigEndian.Uint16(msg[MagicLen:]))
	h := int(binary.BigEndian.Uint16(msg[MagicLen+2:]))
	f := codec.Frame{Kind: kind, Width: w, Height: h}
	if kind != codec.KindNop {
		f.Compressed = append([]byte(nil), msg[MagicLen+4:]...)
	}
	return f, nil
}
