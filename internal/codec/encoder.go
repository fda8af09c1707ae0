package codec

// EncoderOption configures an Encoder at construction time, the same
// functional-options shape as rfc6242.DecoderOption/EncoderOption.
type EncoderOption func(*Encoder)

// WithKeyframeInterval overrides DefaultKeyframeInterval.
func WithKeyframeInterval(n uint32) EncoderOption {
	return func(e *Encoder) {
		if n == 0 {
			n = DefaultKeyframeInterval
		}
		e.keyframeInterval = n
	}
}

// WithNoChangeThreshold overrides DefaultNoChangeThreshold.
func WithNoChangeThreshold(bytes int) EncoderOption {
	return func(e *Encoder) {
		if bytes < 0 {
			bytes = DefaultNoChangeThreshold
		}
		e.noChangeThreshold = bytes
	}
}

// Encoder is the host-side half of the codec. It owns a reference RGB565
// frame and turns successive frames into KEY/DELTA/NOP CodecFrames per
// the ordered decision rules of the frame streaming core. Encoder is not
// safe for concurrent use; it is owned exclusively by one transport loop.
type Encoder struct {
	reference         []byte
	frameCounter      uint32
	keyframeInterval  uint32
	noChangeThreshold int

	lastKeyReason string
	lastKeyForced bool
}

// NewEncoder creates an Encoder in "needs keyframe" state.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{
		keyframeInterval:  DefaultKeyframeInterval,
		noChangeThreshold: DefaultNoChangeThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reset clears the reference frame and zeroes the frame counter, forcing
// the next Encode call to emit KEY. Called on explicit reset, connection
// loss, NACK receipt, or a geometry change.
func (e *Encoder) Reset() {
	e.reference = nil
	e.frameCounter = 0
}

// Reference returns the encoder's current reference frame buffer. It is
// empty exactly when the encoder is in "needs keyframe" state.
func (e *Encoder) Reference() []byte { return e.reference }

// LastKeyframeReason reports why the most recent Encode call emitted a
// KEY frame ("no-reference", "geometry-change", "periodic", or
// "resync"), and whether that reason was something other than the
// periodic keyframe interval. Its value is meaningless after a call
// that emitted DELTA or NOP.
func (e *Encoder) LastKeyframeReason() (reason string, forced bool) {
	return e.lastKeyReason, e.lastKeyForced
}

// Encode decides among KEY, DELTA, and NOP for one RGB565 BE frame of
// size w*h, per the ordered rules:
//
//  1. Force KEY if the reference is empty or the frame counter is zero
//     ("no-reference"), if the reference is the wrong length
//     ("geometry-change"), or if the frame counter is a
//     keyframe-interval multiple ("periodic").
//  2. Otherwise XOR against the reference and LZ4-compress the delta.
//  3. If the compressed delta is smaller than the no-change threshold,
//     emit NOP without touching the reference.
//  4. Otherwise compress the full frame; if that is no larger than the
//     compressed delta, emit KEY ("resync": a same-frame upgrade that
//     also resynchronises reference state after a prior error).
//  5. Otherwise emit DELTA.
//
// frameCounter advances by one, with wraparound, on every call.
func (e *Encoder) Encode(rgb565 []byte, w, h int) Frame {
	defer func() { e.frameCounter++ }()

	wantLen := 2 * w * h
	switch {
	case len(e.reference) == 0 || e.frameCounter == 0:
		e.lastKeyReason, e.lastKeyForced = "no-reference", true
		return e.emitKey(rgb565, w, h)
	case len(e.reference) != wantLen:
		e.lastKeyReason, e.lastKeyForced = "geometry-change", true
		return e.emitKey(rgb565, w, h)
	case e.keyframeInterval != 0 && e.frameCounter%e.keyframeInterval == 0:
		e.lastKeyReason, e.lastKeyForced = "periodic", false
		return e.emitKey(rgb565, w, h)
	}

	delta := xorBuffers(rgb565, e.reference)
	cd := compressSizePrefixed(delta)

	if len(cd) < e.noChangeThreshold {
		e.lastKeyReason, e.lastKeyForced = "", false
		return Frame{Kind: KindNop, Width: w, Height: h}
	}

	ck := compressSizePrefixed(rgb565)
	if len(ck) <= len(cd) {
		e.reference = cloneBytes(rgb565)
		e.lastKeyReason, e.lastKeyForced = "resync", true
		return Frame{Kind: KindKey, Width: w, Height: h, Compressed: ck}
	}

	e.reference = cloneBytes(rgb565)
	e.lastKeyReason, e.lastKeyForced = "", false
	return Frame{Kind: KindDelta, Width: w, Height: h, Compressed: cd}
}

func (e *Encoder) emitKey(rgb565 []byte, w, h int) Frame {
	ck := compressSizePrefixed(rgb565)
	e.reference = cloneBytes(rgb565)
	return Frame{Kind: KindKey, Width: w, Height: h, Compressed: ck}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// xorBuffers XORs a against b byte-wise; a and b must have equal length.
// The tail beyond any word-aligned prefix is handled identically whether
// or not an implementation chooses to accelerate the bulk of the XOR.
func xorBuffers(a, b []byte) []byte {
	out := make([]byte, len(a))
	i := 0
	for ; i+8 <= len(a); i += 8 {
		// Process 8 bytes at a time; this is purely a throughput
		// optimisation and must equal the byte-wise definition.
		av := uint64(a[i]) | uint64(a[i+1])<<8 | uint64(a[i+2])<<16 | uint64(a[i+3])<<24 |
			uint64(a[i+4])<<32 | uint64(a[i+5])<<40 | uint64(a[i+6])<<48 | uint64(a[i+7])<<56
		bv := uint64(b[i]) | uint64(b[i+1])<<8 | uint64(b[i+2])<<16 | uint64(b[i+3])<<24 |
			uint64(b[i+4])<<32 | uint64(b[i+5])<<40 | uint64(b[i+6])<<48 | uint64(b[i+7])<<56
		xv := av ^ bv
		out[i] = byte(xv)
		out[i+1] = byte(xv >> 8)
		out[i+2] = byte(xv >> 16)
		out[i+3] = byte(xv >> 24)
		out[i+4] = byte(xv >> 32)
		out[i+5] = byte(xv >> 40)
		out[i+6] = byte(xv >> 48)
		out[i+7] = byte(xv >> 56)
	}
	for ; i < len(a); i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}
