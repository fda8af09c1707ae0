package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"

	"github.com/damianoneill/screenstream/internal/capture"
	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/damianoneill/screenstream/internal/config"
	"github.com/damianoneill/screenstream/internal/pixel"
	"github.com/damianoneill/screenstream/internal/trace"
	"github.com/damianoneill/screenstream/internal/wire"
)

// DefaultBaudRate is the serial speed used when opening the USB
// transport, high enough to keep a 240x240 RGB565 stream responsive.
const DefaultBaudRate = 921600

// SerialPort is the subset of go.bug.st/serial.Port a HostUSBLoop/
// DeviceUSBLoop needs, narrowed to an interface for the same reason as
// WSConn: so tests can drive the loop over an in-memory pipe.
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// OpenSerialFunc opens a new SerialPort at the given baud rate.
// OpenSerial is the production implementation; tests substitute a fake.
type OpenSerialFunc func(portName string, baud int) (SerialPort, error)

// OpenSerial opens portName with go.bug.st/serial at baud.
func OpenSerial(portName string, baud int) (SerialPort, error) {
	return serial.Open(portName, &serial.Mode{BaudRate: baud})
}

// HostUSBLoop drives the host side of the USB path (§4.4.2): same
// capture-encode-send skeleton as HostLoop, over a byte stream instead
// of a WebSocket, with no per-frame ACK and a fixed inter-frame delay
// in place of ACK pacing.
type HostUSBLoop struct {
	open      OpenSerialFunc
	baud      int
	cfg       *config.Store
	source    capture.Source
	trace     *trace.Trace
	sessionID string

	reconnectBackoff time.Duration
	interFrameDelay  time.Duration

	mu    sync.RWMutex
	state State
}

// HostUSBLoopOption configures a HostUSBLoop at construction time.
type HostUSBLoopOption func(*HostUSBLoop)

// WithHostUSBTrace attaches a trace.Trace to a HostUSBLoop.
func WithHostUSBTrace(t *trace.Trace) HostUSBLoopOption {
	return func(h *HostUSBLoop) { h.trace = t }
}

// WithBaudRate overrides DefaultBaudRate.
func WithBaudRate(baud int) HostUSBLoopOption {
	return func(h *HostUSBLoop) { h.baud = baud }
}

// WithUSBReconnectBackoff overrides the default 3s reconnect backoff.
func WithUSBReconnectBackoff(d time.Duration) HostUSBLoopOption {
	return func(h *HostUSBLoop) { h.reconnectBackoff = d }
}

// WithUSBInterFrameDelay overrides the default ~35ms inter-frame delay
// that substitutes for ACK pacing on the USB path (§4.4.2).
func WithUSBInterFrameDelay(d time.Duration) HostUSBLoopOption {
	return func(h *HostUSBLoop) { h.interFrameDelay = d }
}

// NewHostUSBLoop constructs a HostUSBLoop. open is typically OpenSerial;
// tests pass a fake. Each loop instance mints its own session id, used
// to correlate its trace hook calls across a reconnect.
func NewHostUSBLoop(open OpenSerialFunc, cfg *config.Store, source capture.Source, opts ...HostUSBLoopOption) *HostUSBLoop {
	h := &HostUSBLoop{
		open:             open,
		baud:             DefaultBaudRate,
		cfg:              cfg,
		source:           source,
		trace:            trace.NoOpHooks,
		sessionID:        uuid.New().String(),
		reconnectBackoff: 3 * time.Second,
		interFrameDelay:  35 * time.Millisecond,
		state:            Disconnected,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the loop's current connection state.
func (h *HostUSBLoop) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *HostUSBLoop) setState(target string, s State) {
	h.mu.Lock()
	old := h.state
	h.state = s
	h.mu.Unlock()
	if old != s {
		h.trace.StateChange(h.sessionID, target, old.String(), s.String())
	}
}

// Run drives the loop until ctx is cancelled.
func (h *HostUSBLoop) Run(ctx context.Context) error {
	enc := codec.NewEncoder()

	for {
		if err := ctx.Err(); err != nil {
			h.setState("", Disconnected)
			return err
		}

		cfg := h.cfg.Get()
		enc = codec.NewEncoder(codec.WithKeyframeInterval(cfg.KeyframeInterval))

		h.setState(cfg.Target.Address, Connecting)
		h.trace.ConnectStart(h.sessionID, cfg.Target.Address)
		begin := time.Now()
		port, err := h.open(cfg.Target.Address, h.baud)
		h.trace.ConnectDone(h.sessionID, cfg.Target.Address, err, time.Since(begin))
		if err != nil {
			if !h.sleep(ctx, h.reconnectBackoff) {
				return ctx.Err()
			}
			continue
		}

		h.setState(cfg.Target.Address, Connected)
		h.setState(cfg.Target.Address, Streaming)
		streamErr := h.stream(ctx, port, enc, cfg)
		_ = port.Close()
		h.trace.ConnectionClosed(h.sessionID, cfg.Target.Address, streamErr)
		h.setState(cfg.Target.Address, Disconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (h *HostUSBLoop) stream(ctx context.Context, port SerialPort, enc *codec.Encoder, initial config.Config) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := h.cfg.Get()
		if cfg.Target != initial.Target || cfg.Geometry != initial.Geometry {
			return nil
		}

		rgba, srcW, srcH, err := h.source.Capture()
		if err != nil {
			if !h.sleep(ctx, time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		if x, y, ok := h.source.MousePosition(); ok {
			pixel.CompositeCursorRGBA(rgba, srcW, srcH, x, y, 4, 0xFF, 0xFF, 0xFF)
		}

		rgb565 := pixel.RGBAToRGB565BE(rgba, srcW, srcH, cfg.Geometry.Width, cfg.Geometry.Height)
		frame := enc.Encode(rgb565, cfg.Geometry.Width, cfg.Geometry.Height)
		h.trace.FrameEncoded(h.sessionID, frame.Kind.String(), len(frame.Compressed))
		if reason, forced := enc.LastKeyframeReason(); forced {
			h.trace.KeyframeForced(h.sessionID, reason)
		}

		if frame.Kind != codec.KindNop {
			envelope := wire.EncodeImageEnvelope(frame.Width, frame.Height, 0, 0, frame.Compressed)
			sendBegin := time.Now()
			_, writeErr := port.Write(envelope)
			h.trace.FrameSent(h.sessionID, frame.Kind.String(), len(envelope), writeErr, time.Since(sendBegin))
			if writeErr != nil {
				enc.Reset()
				return writeErr
			}
		}

		if !h.sleep(ctx, h.interFrameDelay) {
			return ctx.Err()
		}
	}
}

func (h *HostUSBLoop) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
