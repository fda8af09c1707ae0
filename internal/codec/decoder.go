package codec

// DecoderOption configures a Decoder at construction time.
type DecoderOption func(*Decoder)

// Decoder is the device-side half of the codec. It owns a reference
// RGB565 frame, reconstructed by applying KEY/DELTA frames, and tracks a
// small amount of error bookkeeping for rate-limited logging. Decoder is
// not safe for concurrent use; it is owned exclusively by one transport
// loop, the same loop that drives the display blitter, so there is never
// a race between an in-flight Decode and the next one.
type Decoder struct {
	reference    []byte
	lastErrKind  ErrorKind
	errorRun     uint32
}

// NewDecoder creates a Decoder with an empty reference; the first frame
// it accepts must be KEY.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reference returns the decoder's current reference frame. It is empty
// after construction and after any decode failure.
func (d *Decoder) Reference() []byte { return d.reference }

// LastError reports the most recently observed error kind and how many
// consecutive decodes have failed with it, for rate-limited logging.
func (d *Decoder) LastError() (kind ErrorKind, run uint32) { return d.lastErrKind, d.errorRun }

// Reset clears the reference frame, as on transport close.
func (d *Decoder) Reset() { d.reference = nil }

// DecodeKey LZ4-decompresses compressed and, if its length is exactly
// 2*w*h, installs it as the new reference. On any failure the reference
// is cleared and an error is returned.
func (d *Decoder) DecodeKey(w, h int, compressed []byte) ([]byte, error) {
	want := 2 * w * h
	full, err := decompressSizePrefixed(compressed, want)
	if err != nil {
		d.fail(err)
		return nil, err
	}
	d.reference = full
	d.clearError()
	return d.reference, nil
}

// DecodeDelta LZ4-decompresses compressed, verifies its length matches
// the current reference, and XORs it into the reference in place. On any
// failure (including no reference present) the reference is cleared.
func (d *Decoder) DecodeDelta(w, h int, compressed []byte) ([]byte, error) {
	if len(d.reference) == 0 {
		err := ErrNoReference
		d.fail(err)
		return nil, err
	}
	delta, err := decompressSizePrefixed(compressed, len(d.reference))
	if err != nil {
		d.fail(err)
		return nil, err
	}
	xorInPlace(d.reference, delta)
	d.clearError()
	return d.reference, nil
}

// DecodeNop signals that the prior framebuffer remains authoritative; it
// mutates nothing and never fails.
func (d *Decoder) DecodeNop() {
	d.clearError()
}

// InstallRaw installs buf as the reference frame directly, with no LZ4
// decompression, for the legacy "RGB565"-prefixed raw payload (§9). buf
// must be exactly 2*w*h bytes.
func (d *Decoder) InstallRaw(buf []byte, w, h int) ([]byte, error) {
	if len(buf) != 2*w*h {
		err := ErrSizeMismatch
		d.fail(err)
		return nil, err
	}
	d.reference = cloneBytes(buf)
	d.clearError()
	return d.reference, nil
}

// DecodeXOR is the USB stream-framing counterpart of DecodeKey/DecodeDelta
// (§4.3): the stream envelope carries no frame-kind magic, so every image
// payload is decompressed and XORed into the reference uniformly. If no
// reference exists yet, or it is the wrong size, a zero-filled reference
// of the right size is allocated first -- which makes a KEY payload (XORed
// against all zero bytes at the encoder) come out exactly as itself, and a
// DELTA payload come out as reference^delta, with no format distinction
// needed on this path.
func (d *Decoder) DecodeXOR(w, h int, compressed []byte) ([]byte, error) {
	want := 2 * w * h
	payload, err := decompressSizePrefixed(compressed, want)
	if err != nil {
		d.fail(err)
		return nil, err
	}
	if len(d.reference) != want {
		d.reference = make([]byte, want)
	}
	xorInPlace(d.reference, payload)
	d.clearError()
	return d.reference, nil
}

func (d *Decoder) fail(err error) {
	kind := KindOf(err)
	if kind == d.lastErrKind {
		d.errorRun++
	} else {
		d.lastErrKind = kind
		d.errorRun = 1
	}
	d.reference = nil
}

func (d *Decoder) clearError() {
	d.lastErrKind = ErrorKindNone
	d.errorRun = 0
}

// xorInPlace XORs delta into reference; both must have equal length.
func xorInPlace(reference, delta []byte) {
	i := 0
	for ; i+8 <= len(reference); i += 8 {
		rv := uint64(reference[i]) | uint64(reference[i+1])<<8 | uint64(reference[i+2])<<16 | uint64(reference[i+3])<<24 |
			uint64(reference[i+4])<<32 | uint64(reference[i+5])<<40 | uint64(reference[i+6])<<48 | uint64(reference[i+7])<<56
		dv := uint64(delta[i]) | uint64(delta[i+1])<<8 | uint64(delta[i+2])<<16 | uint64(delta[i+3])<<24 |
			uint64(delta[i+4])<<32 | uint64(delta[i+5])<<40 | uint64(delta[i+6])<<48 | uint64(delta[i+7])<<56
		xv := rv ^ dv
		reference[i] = byte(xv)
		reference[i+1] = byte(xv >> 8)
		reference[i+2] = byte(xv >> 16)
		reference[i+3] = byte(xv >> 24)
		reference[i+4] = byte(xv >> 32)
		reference[i+5] = byte(xv >> 40)
		reference[i+6] = byte(xv >> 48)
		reference[i+7] = byte(xv >> 56)
	}
	for ; i < len(reference); i++ {
		reference[i] ^= delta[i]
	}
}
