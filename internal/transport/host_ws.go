package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/damianoneill/screenstream/internal/capture"
	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/damianoneill/screenstream/internal/config"
	"github.com/damianoneill/screenstream/internal/pixel"
	"github.com/damianoneill/screenstream/internal/trace"
	"github.com/damianoneill/screenstream/internal/wire"
)

// WSConn is the subset of *websocket.Conn a HostLoop/DeviceLoop needs.
// Narrowing to an interface, rather than taking *websocket.Conn
// directly, decouples a loop from any one concrete connection
// implementation -- here so tests can drive the loop against an
// in-memory fake instead of a real socket.
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// WSDialFunc opens a new WSConn to target. DialWebSocket is the
// production implementation; tests substitute a fake.
type WSDialFunc func(ctx context.Context, target string) (WSConn, error)

// DialWebSocket dials target with gorilla/websocket's default dialer.
func DialWebSocket(ctx context.Context, target string) (WSConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: dial")
	}
	return conn, nil
}

// HostLoopOption configures a HostLoop at construction time.
type HostLoopOption func(*HostLoop)

// WithHostTrace attaches a trace.Trace to a HostLoop.
func WithHostTrace(t *trace.Trace) HostLoopOption {
	return func(h *HostLoop) { h.trace = t }
}

// WithReconnectBackoff overrides the default 3s reconnect backoff.
func WithReconnectBackoff(d time.Duration) HostLoopOption {
	return func(h *HostLoop) { h.reconnectBackoff = d }
}

// WithAckTimeout overrides the default 3s ACK read timeout.
func WithAckTimeout(d time.Duration) HostLoopOption {
	return func(h *HostLoop) { h.ackTimeout = d }
}

// WithInterFrameDelay overrides the default ~1ms inter-frame delay.
func WithInterFrameDelay(d time.Duration) HostLoopOption {
	return func(h *HostLoop) { h.interFrameDelay = d }
}

// HostLoop drives the host side of the WebSocket path (§4.4.1): it
// captures, encodes, and sends frames, and runs its own
// Disconnected/Connecting/Connected/Streaming state machine, re-reading
// config every iteration and reconnecting whenever its Target or
// Geometry changes.
type HostLoop struct {
	dial      WSDialFunc
	cfg       *config.Store
	source    capture.Source
	trace     *trace.Trace
	sessionID string

	reconnectBackoff time.Duration
	ackTimeout       time.Duration
	interFrameDelay  time.Duration

	mu    sync.RWMutex
	state State
}

// NewHostLoop constructs a HostLoop. dial is typically DialWebSocket;
// tests pass a fake. Each loop instance mints its own session id, used
// to correlate its trace hook calls across a reconnect.
func NewHostLoop(dial WSDialFunc, cfg *config.Store, source capture.Source, opts ...HostLoopOption) *HostLoop {
	h := &HostLoop{
		dial:             dial,
		cfg:              cfg,
		source:           source,
		trace:            trace.NoOpHooks,
		sessionID:        uuid.New().String(),
		reconnectBackoff: 3 * time.Second,
		ackTimeout:       3 * time.Second,
		interFrameDelay:  time.Millisecond,
		state:            Disconnected,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the loop's current connection state, safe to call
// concurrently with Run (the host's status poller, §7).
func (h *HostLoop) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *HostLoop) setState(target string, s State) {
	h.mu.Lock()
	old := h.state
	h.state = s
	h.mu.Unlock()
	if old != s {
		h.trace.StateChange(h.sessionID, target, old.String(), s.String())
	}
}

// Run drives the loop until ctx is cancelled, reconnecting on every
// transport error and on every observed configuration change.
func (h *HostLoop) Run(ctx context.Context) error {
	enc := codec.NewEncoder()
	framer := wire.NewMessageCodec()

	for {
		if err := ctx.Err(); err != nil {
			h.setState("", Disconnected)
			return err
		}

		cfg := h.cfg.Get()
		enc.Reset()
		enc = codec.NewEncoder(codec.WithKeyframeInterval(cfg.KeyframeInterval))

		h.setState(cfg.Target.Address, Connecting)
		h.trace.ConnectStart(h.sessionID, cfg.Target.Address)
		begin := time.Now()
		conn, err := h.dial(ctx, cfg.Target.Address)
		h.trace.ConnectDone(h.sessionID, cfg.Target.Address, err, time.Since(begin))
		if err != nil {
			if !h.sleep(ctx, h.reconnectBackoff) {
				return ctx.Err()
			}
			continue
		}

		h.setState(cfg.Target.Address, Connected)
		h.setState(cfg.Target.Address, Streaming)
		streamErr := h.stream(ctx, conn, enc, framer, cfg)
		_ = conn.Close()
		h.trace.ConnectionClosed(h.sessionID, cfg.Target.Address, streamErr)
		h.setState(cfg.Target.Address, Disconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// stream runs the capture-encode-send-await-ack cycle until an error
// occurs, the configuration changes, or ctx is cancelled; it never
// returns nil except on a deliberate, policy-driven reconnect.
func (h *HostLoop) stream(ctx context.Context, conn WSConn, enc *codec.Encoder, framer *wire.MessageCodec, initial config.Config) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := h.cfg.Get()
		if cfg.Target != initial.Target || cfg.Geometry != initial.Geometry {
			return nil // configuration change: caller reconnects and resets the encoder
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

		msg := framer.Encode(frame)
		sendBegin := time.Now()
		writeErr := conn.WriteMessage(websocket.BinaryMessage, msg)
		h.trace.FrameSent(h.sessionID, frame.Kind.String(), len(msg), writeErr, time.Since(sendBegin))
		if writeErr != nil {
			enc.Reset()
			return errors.Wrap(ErrTransportClosed, writeErr.Error())
		}

		// awaitAck's non-nil, non-ErrTransportClosed returns (e.g.
		// ErrAckTimeout) are already traced inside awaitAck and call for
		// no further action here -- its policy is to reset the encoder
		// and keep the link, not to reconnect.
		if err := h.awaitAck(conn, enc); err != nil && errors.Is(err, ErrTransportClosed) {
			return err
		}

		if !h.sleep(ctx, h.interFrameDelay) {
			return ctx.Err()
		}
	}
}

// awaitAck reads one text reply per §4.4.1 point 5. Any payload other
// than NACK is treated as an ACK; NACK resets the encoder. A read
// timeout (or other non-close read error) also resets the encoder and
// returns ErrAckTimeout; a close frame propagates ErrTransportClosed.
func (h *HostLoop) awaitAck(conn WSConn, enc *codec.Encoder) error {
	_ = conn.SetReadDeadline(time.Now().Add(h.ackTimeout))
	begin := time.Now()
	mt, p, err := conn.ReadMessage()
	d := time.Since(begin)
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			h.trace.FrameReceived(h.sessionID, "ack", 0, err, d)
			return errors.Wrap(ErrTransportClosed, err.Error())
		}
		// Read timeout (or any other transient read error): reset the
		// encoder but keep the link, per §4.4.1 point 5 / §5.
		enc.Reset()
		h.trace.AckReceived(h.sessionID, false)
		return errors.Wrap(ErrAckTimeout, err.Error())
	}
	if mt == websocket.CloseMessage {
		return errors.Wrap(ErrTransportClosed, "close frame")
	}
	switch string(p) {
	case "NACK":
		enc.Reset()
		h.trace.AckReceived(h.sessionID, false)
	default: // "ACK" or any other text payload
		h.trace.AckReceived(h.sessionID, true)
	}
	return nil
}

// sleep blocks for d or until ctx is cancelled, returning false in the
// latter case.
func (h *HostLoop) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
