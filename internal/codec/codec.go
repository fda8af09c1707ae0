// Package codec implements the XOR delta / keyframe video codec that is
// the heart of the streaming core: a host-side Encoder that turns
// successive RGB565 frames into KEY, DELTA, or NOP frames, and a
// device-side Decoder that reconstructs the authoritative framebuffer
// from them. Encoder and Decoder are concrete types with a fixed
// three-branch decision tree; neither has plugin points (§9 of the
// spec this module implements: "avoid reliance on dynamic dispatch").
package codec

// Kind identifies which of the three codec frame kinds a CodecFrame carries.
type Kind uint8

const (
	// KindKey is a self-contained reference frame.
	KindKey Kind = iota
	// KindDelta is an XOR of the current frame against the prior reference.
	KindDelta
	// KindNop asserts that nothing changed; the receiver keeps its framebuffer.
	KindNop
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "KEY"
	case KindDelta:
		return "DELTA"
	case KindNop:
		return "NOP"
	default:
		return "UNKNOWN"
	}
}

// Frame is the tagged output of Encoder.Encode; its Kind selects which of
// Decoder.DecodeKey, DecodeDelta, or DecodeNop consumes it. Compressed is the LZ4-with-prepended-size encoding of
// the full RGB565 buffer (KindKey) or of the XOR delta (KindDelta); it is
// nil for KindNop.
type Frame struct {
	Kind       Kind
	Width      int
	Height     int
	Compressed []byte
}

// DefaultKeyframeInterval is the number of encode() calls between forced
// keyframes absent an explicit WithKeyframeInterval option.
const DefaultKeyframeInterval = 60

// DefaultNoChangeThreshold is the compressed-delta size, in bytes, below
// which the encoder treats a frame as unchanged and emits NOP instead of
// DELTA. It is a coding-overhead floor, not a perceptual threshold: below
// this size the LZ4 framing itself dominates the payload.
const DefaultNoChangeThreshold = 200
