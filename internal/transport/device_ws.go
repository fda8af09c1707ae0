package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/damianoneill/screenstream/internal/display"
	"github.com/damianoneill/screenstream/internal/trace"
	"github.com/damianoneill/screenstream/internal/wire"
)

// MemoryProbe reports the device's current free heap, for the low
// memory policy of §4.4.3/§7. A nil MemoryProbe disables the check.
type MemoryProbe func() (freeBytes int)

// DeviceLoopOption configures a DeviceLoop at construction time.
type DeviceLoopOption func(*DeviceLoop)

// WithDeviceTrace attaches a trace.Trace to a DeviceLoop.
func WithDeviceTrace(t *trace.Trace) DeviceLoopOption {
	return func(d *DeviceLoop) { d.trace = t }
}

// WithMemoryThresholds sets the low/critical free-heap thresholds
// consulted before each message is processed (§4.4.3, §7 LowMemory).
func WithMemoryThresholds(probe MemoryProbe, low, critical int) DeviceLoopOption {
	return func(d *DeviceLoop) { d.memProbe, d.lowMem, d.criticalMem = probe, low, critical }
}

// WithLegacyFrames enables recognition of the two legacy payload shapes
// (§9 open question) that a new host encoder never emits.
func WithLegacyFrames() DeviceLoopOption {
	return func(d *DeviceLoop) { d.legacy = true }
}

// DeviceLoop drives the device side of the WebSocket path (§4.4.3): for
// each binary message it demuxes on the leading magic, invokes the
// decoder, blits on success, and replies ACK/NACK.
type DeviceLoop struct {
	conn      WSConn
	dec       *codec.Decoder
	blitter   display.Blitter
	codec     *wire.MessageCodec
	trace     *trace.Trace
	sessionID string

	legacy      bool
	memProbe    MemoryProbe
	lowMem      int
	criticalMem int

	state State
}

// NewDeviceLoop constructs a DeviceLoop bound to one already-accepted
// connection, decoder, and blitter. A fresh DeviceLoop (and fresh
// Decoder, and fresh session id) is expected per connection, per
// §4.4.5 "one instance per session".
func NewDeviceLoop(conn WSConn, dec *codec.Decoder, blitter display.Blitter, opts ...DeviceLoopOption) *DeviceLoop {
	d := &DeviceLoop{
		conn:      conn,
		dec:       dec,
		blitter:   blitter,
		codec:     wire.NewMessageCodec(),
		trace:     trace.NoOpHooks,
		sessionID: uuid.New().String(),
		state:     Disconnected,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the loop's current state.
func (d *DeviceLoop) State() State { return d.state }

// Run resets the decoder, sends the welcome message, and processes
// messages until the connection closes or ctx-equivalent cancellation
// is signalled by a read error. It returns nil on a clean close.
func (d *DeviceLoop) Run() error {
	d.dec.Reset()
	d.state = Connected
	if err := d.conn.WriteMessage(websocket.TextMessage, []byte("welcome")); err != nil {
		return err
	}
	d.state = Streaming

	for {
		mt, p, err := d.conn.ReadMessage()
		if err != nil {
			d.state = Disconnected
			return nil
		}

		if d.memProbe != nil {
			free := d.memProbe()
			if free < d.criticalMem {
				_ = d.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseMessage, "low memory"))
				d.state = Disconnected
				return nil
			}
			if free < d.lowMem {
				_ = d.conn.WriteMessage(websocket.TextMessage, []byte("busy"))
				continue
			}
		}

		switch mt {
		case websocket.TextMessage:
			// A drawing-DSL request for the external drawing collaborator;
			// out of scope for the streaming core (§4.4.3 point "text").
			continue
		case websocket.BinaryMessage:
			d.handleBinary(p)
		}
	}
}

func (d *DeviceLoop) handleBinary(msg []byte) {
	begin := time.Now()
	frame, err := d.codec.Decode(msg)
	if err != nil {
		if d.legacy {
			d.handleLegacy(msg)
		}
		return
	}

	var (
		ref     []byte
		decErr  error
	)
	switch frame.Kind {
	case codec.KindKey:
		ref, decErr = d.dec.DecodeKey(frame.Width, frame.Height, frame.Compressed)
	case codec.KindDelta:
		ref, decErr = d.dec.DecodeDelta(frame.Width, frame.Height, frame.Compressed)
	default:
		d.dec.DecodeNop()
	}
	d.trace.FrameReceived(d.sessionID, frame.Kind.String(), len(msg), decErr, time.Since(begin))

	if decErr != nil {
		kind, run := d.dec.LastError()
		d.trace.DecodeError(d.sessionID, kind.String(), run)
		_ = d.conn.WriteMessage(websocket.TextMessage, []byte("NACK"))
		return
	}
	if frame.Kind != codec.KindNop {
		if err := d.blitter.BlitRGB565(0, 0, frame.Width, frame.Height, ref); err != nil {
			_ = d.conn.WriteMessage(websocket.TextMessage, []byte("NACK"))
			return
		}
	}
	_ = d.conn.WriteMessage(websocket.TextMessage, []byte("ACK"))
}

// handleLegacy dispatches a payload that did not match a delta-protocol
// magic to one of the two legacy shapes, if WithLegacyFrames is set.
func (d *DeviceLoop) handleLegacy(msg []byte) {
	kind, rest := wire.DetectLegacy(msg)
	ref := d.dec.Reference()
	// Legacy payloads carry no geometry header (§9), so there is no w,h
	// to decode against; DecodeKey/InstallRaw only ever use the w*h
	// product to validate a decompressed length, so reporting the
	// existing reference's area as (area,1) is exact without resizing.
	w, h := len(ref)/2, 1
	var (
		newRef []byte
		err    error
	)
	switch kind {
	case wire.LegacyRawRGB565:
		if len(ref) == 0 || len(rest) != len(ref) {
			_ = d.conn.WriteMessage(websocket.TextMessage, []byte("NACK"))
			return
		}
		newRef, err = d.dec.InstallRaw(rest, w, h)
	case wire.LegacyRawLZ4:
		if len(ref) == 0 {
			_ = d.conn.WriteMessage(websocket.TextMessage, []byte("NACK"))
			return
		}
		newRef, err = d.dec.DecodeKey(w, h, rest)
	default:
		return // neither magic nor legacy shape: ignore, per §4.4.3
	}
	if err != nil {
		_ = d.conn.WriteMessage(websocket.TextMessage, []byte("NACK"))
		return
	}
	dispW, dispH := d.blitter.Dimensions()
	if err := d.blitter.BlitRGB565(0, 0, dispW, dispH, newRef); err != nil {
		_ = d.conn.WriteMessage(websocket.TextMessage, []byte("NACK"))
		return
	}
	_ = d.conn.WriteMessage(websocket.TextMessage, []byte("ACK"))
}
