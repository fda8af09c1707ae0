package wire

import (
	"encoding/binary"
)

// DefaultMaxImageBufSize is the MAX_IMAGE_BUF_SIZE bound on an in-flight
// envelope's accumulated payload (§4.3), 512 KiB.
const DefaultMaxImageBufSize = 512 * 1024

// EventKind identifies which kind of record a StreamCodec.Feed call
// produced.
type EventKind uint8

const (
	// EventImage is a completed IMAGE_AA...IMAGE_BB envelope.
	EventImage EventKind = iota
	// EventSpeedTest is a completed SPDTEST1...SPDEND!! envelope.
	EventSpeedTest
	// EventReadInfo is a device-info probe, in either binary or ASCII-line form.
	EventReadInfo
	// EventFrameAborted reports that an in-flight image or speed-test
	// envelope was discarded because it exceeded MaxImageBufSize inside
	// Feed. AbortFrame discards an envelope without producing this event.
	EventFrameAborted
)

// Event is one parsed record from the USB byte stream.
//
// Image envelopes carry no frame-kind magic (§4.3's StreamRecord has one
// shape for every image); unlike the message framing's KEY/DELTA
// distinction, the decoder on this path always decompresses the payload
// and XORs it into its reference, allocating a zero-filled reference
// first if none exists yet. Since a KEY payload is, by construction, a
// frame XORed against an all-zero buffer, this single operation
// reconstructs both KEY and DELTA frames identically -- the "LZ4 +
// in-buffer XOR via the codec" §4.3 describes. NOP frames are simply
// never written to the stream (see transport.HostUSBLoop).
type Event struct {
	Kind EventKind

	// Valid when Kind == EventImage.
	Width, Height  int
	X, Y           int
	Compressed     []byte

	// Valid when Kind == EventSpeedTest.
	SpeedTestBytes int

	// Valid when Kind == EventFrameAborted.
	Overflow bool
}

type scanState uint8

const (
	stateScanning scanState = iota
	stateImageHeader
	stateImageBody
	stateSpeedTest
)

// StreamCodec parses the USB stream framing: it scans an incoming byte
// stream for IMAGE_AA, SPDTEST1, and ReadInfo magics (tolerating
// arbitrary interleaved ASCII log lines between envelopes, discarded up
// to and including their trailing newline), and assembles the bytes
// between a start and end magic into a completed Event.
//
// StreamCodec is a pure, clock-free parser: it has no notion of
// FRAME_RECEIVE_TIMEOUT_MS itself. A caller enforces the timeout by
// tracking wall-clock time since the last Feed that made progress and
// calling AbortFrame once the deadline passes; StreamCodec enforces only
// the memory bound (MaxImageBufSize), which is a property of bytes
// received, not elapsed time.
//
// StreamCodec is not safe for concurrent use.
type StreamCodec struct {
	MaxImageBufSize int

	state  scanState
	window []byte // sliding tail, for cross-call magic matching
	body   []byte // accumulated envelope payload
	w, h, x, y int
}

// NewStreamCodec creates a StreamCodec with DefaultMaxImageBufSize.
func NewStreamCodec() *StreamCodec {
	return &StreamCodec{MaxImageBufSize: DefaultMaxImageBufSize, state: stateScanning}
}

// InFlight reports whether an image envelope is currently being
// accumulated (i.e. IMAGE_AA has been seen but IMAGE_BB has not).
func (s *StreamCodec) InFlight() bool { return s.state == stateImageBody || s.state == stateImageHeader }

// SpeedTesting reports whether a SPDTEST1...SPDEND!! envelope is
// currently being accumulated, so a caller can time its duration (the
// codec itself is clock-free, per StreamCodec's doc comment).
func (s *StreamCodec) SpeedTesting() bool { return s.state == stateSpeedTest }

// AbortFrame discards any in-flight envelope, together with any buffered
// bytes not yet parsed, and returns the codec to scan state, for the
// caller's FRAME_RECEIVE_TIMEOUT_MS enforcement (§4.3, §4.4.4 point 4).
func (s *StreamCodec) AbortFrame() {
	s.state = stateScanning
	s.body = nil
	s.window = nil
}

// Feed supplies newly read bytes and returns any Events completed as a
// result. A single call may complete more than one Event (e.g. a
// ReadInfo probe immediately followed by an IMAGE_AA envelope).
func (s *StreamCodec) Feed(data []byte) []Event {
	var events []Event
	s.window = append(s.window, data...)

	for {
		ev, consumed, ok := s.step()
		if !ok {
			break
		}
		if ev != nil {
			events = append(events, *ev)
		}
		s.window = s.window[consumed:]
	}
	return events
}

// step attempts to make one parsing transition from the current window.
// It returns ok=false when the window holds insufficient data to make
// progress, in which case the caller should wait for more bytes.
func (s *StreamCodec) step() (*Event, int, bool) {
	switch s.state {
	case stateScanning:
		return s.stepScanning()
	case stateImageHeader:
		return s.stepImageHeader()
	case stateImageBody:
		return s.stepImageBody()
	case stateSpeedTest:
		return s.stepSpeedTest()
	default:
		return nil, 0, false
	}
}

func (s *StreamCodec) stepScanning() (*Event, int, bool) {
	w := s.window
	if len(w) < MagicLen {
		// Not enough to recognise any magic yet, but if there's a
		// newline in hand it terminates a log line regardless.
		if i := indexByte(w, '\n'); i >= 0 {
			return nil, i + 1, true
		}
		return nil, 0, false
	}
	if bytesEqualMagic(w[:MagicLen], ImageAAMagic) {
		s.state = stateImageHeader
		return nil, MagicLen, true
	}
	if bytesEqualMagic(w[:MagicLen], SpeedTestStart) {
		s.state = stateSpeedTest
		s.body = nil
		return nil, MagicLen, true
	}
	if bytesEqualMagic(w[:MagicLen], ReadInfoMagic) {
		return &Event{Kind: EventReadInfo}, MagicLen, true
	}
	if len(w) >= len(ReadInfoLine) && string(w[:len(ReadInfoLine)]) == ReadInfoLine {
		return &Event{Kind: EventReadInfo}, len(ReadInfoLine), true
	}
	if w[0] == '\n' {
		return nil, 1, true
	}
	// No magic starts here; if a newline exists ahead, discard the log
	// line up to and including it. Otherwise discard one byte at a time
	// so a magic straddling a future Feed call is still found once more
	// bytes arrive (we only discard once we know this byte cannot be a
	// magic prefix).
	if i := indexByte(w, '\n'); i >= 0 {
		return nil, i + 1, true
	}
	if couldBeMagicPrefix(w) {
		return nil, 0, false
	}
	return nil, 1, true
}

func (s *StreamCodec) stepImageHeader() (*Event, int, bool) {
	const headerLen = 8 // w,h,x,y each 2 bytes BE
	if len(s.window) < headerLen {
		return nil, 0, false
	}
	h := s.window[:headerLen]
	s.w = int(binary.BigEndian.Uint16(h[0:2]))
	s.h = int(binary.BigEndian.Uint16(h[2:4]))
	s.x = int(binary.BigEndian.Uint16(h[4:6]))
	s.y = int(binary.BigEndian.Uint16(h[6:8]))
	s.body = nil
	s.state = stateImageBody
	return nil, headerLen, true
}

func (s *StreamCodec) stepImageBody() (*Event, int, bool) {
	w := s.window
	idx := indexMagic(w, ImageBBMagic)
	if idx < 0 {
		if len(s.body)+len(w) > s.MaxImageBufSize {
			s.state = stateScanning
			s.body = nil
			return &Event{Kind: EventFrameAborted, Overflow: true}, len(w), true
		}
		return nil, 0, false
	}
	s.body = append(s.body, w[:idx]...)
	consumed := idx + MagicLen
	s.state = stateScanning
	ev := &Event{Kind: EventImage, Width: s.w, Height: s.h, X: s.x, Y: s.y, Compressed: s.body}
	s.body = nil
	return ev, consumed, true
}

func (s *StreamCodec) stepSpeedTest() (*Event, int, bool) {
	w := s.window
	idx := indexMagic(w, SpeedTestEnd)
	if idx < 0 {
		if len(s.body)+len(w) > s.MaxImageBufSize {
			s.state = stateScanning
			s.body = nil
			return &Event{Kind: EventFrameAborted, Overflow: true}, len(w), true
		}
		return nil, 0, false
	}
	s.body = append(s.body, w[:idx]...)
	consumed := idx + MagicLen
	s.state = stateScanning
	ev := &Event{Kind: EventSpeedTest, SpeedTestBytes: len(s.body)}
	s.body = nil
	return ev, consumed, true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func indexMagic(b []byte, m [MagicLen]byte) int {
	if len(b) < MagicLen {
		return -1
	}
	for i := 0; i+MagicLen <= len(b); i++ {
		if bytesEqualMagic(b[i:i+MagicLen], m) {
			return i
		}
	}
	return -1
}

// couldBeMagicPrefix reports whether w could be a strict prefix of any
// recognised magic or the ReadInfo ASCII line, so the scanner should
// wait for more bytes instead of discarding.
func couldBeMagicPrefix(w []byte) bool {
	n := len(w)
	if n == 0 {
		return false
	}
	candidates := [][]byte{ImageAAMagic[:], SpeedTestStart[:], ReadInfoMagic[:], []byte(ReadInfoLine)}
	for _, c := range candidates {
		m := n
		if m > len(c) {
			m = len(c)
		}
		if string(w[:m]) == string(c[:m]) {
			return true
		}
	}
	return false
}
