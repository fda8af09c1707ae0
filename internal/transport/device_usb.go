package transport

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/damianoneill/screenstream/internal/codec"
	"github.com/damianoneill/screenstream/internal/display"
	"github.com/damianoneill/screenstream/internal/trace"
	"github.com/damianoneill/screenstream/internal/wire"
)

// DefaultFrameReceiveTimeout is FRAME_RECEIVE_TIMEOUT_MS (§4.3, ≈3s).
const DefaultFrameReceiveTimeout = 3 * time.Second

// defaultPollInterval is the serial read timeout granularity the loop
// polls at, giving it a chance to notice an expired frame-receive
// timeout even when the port is otherwise idle (§4.4.4 point 7,
// "yields periodically").
const defaultPollInterval = 100 * time.Millisecond

// DeviceUSBLoopOption configures a DeviceUSBLoop at construction time.
type DeviceUSBLoopOption func(*DeviceUSBLoop)

// WithDeviceUSBTrace attaches a trace.Trace to a DeviceUSBLoop.
func WithDeviceUSBTrace(t *trace.Trace) DeviceUSBLoopOption {
	return func(d *DeviceUSBLoop) { d.trace = t }
}

// WithFrameReceiveTimeout overrides DefaultFrameReceiveTimeout.
func WithFrameReceiveTimeout(d time.Duration) DeviceUSBLoopOption {
	return func(l *DeviceUSBLoop) { l.frameTimeout = d }
}

// WithDeviceGeometry sets the (w,h) reported by the ReadInfo probe
// reply; it does not constrain the size of any individual image
// envelope, which always carries its own geometry.
func WithDeviceGeometry(w, h int) DeviceUSBLoopOption {
	return func(l *DeviceUSBLoop) { l.width, l.height = w, h }
}

// DeviceUSBLoop drives the device side of the USB path (§4.4.4): it
// scans the incoming byte stream for image, speed-test, and
// device-info records via wire.StreamCodec, decodes/blits image
// records with DecodeXOR, and replies to the speed-test and
// device-info probes.
type DeviceUSBLoop struct {
	port      SerialPort
	dec       *codec.Decoder
	blitter   display.Blitter
	stream    *wire.StreamCodec
	trace     *trace.Trace
	sessionID string

	frameTimeout time.Duration
	pollInterval time.Duration
	width, height int

	speedTestStart time.Time
	lastProgress   time.Time
}

// NewDeviceUSBLoop constructs a DeviceUSBLoop bound to one open serial
// port, decoder, and blitter.
func NewDeviceUSBLoop(port SerialPort, dec *codec.Decoder, blitter display.Blitter, opts ...DeviceUSBLoopOption) *DeviceUSBLoop {
	l := &DeviceUSBLoop{
		port:         port,
		dec:          dec,
		blitter:      blitter,
		stream:       wire.NewStreamCodec(),
		trace:        trace.NoOpHooks,
		sessionID:    uuid.New().String(),
		frameTimeout: DefaultFrameReceiveTimeout,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run reads from the port and dispatches decoded events until ctx is
// cancelled or a read error occurs.
func (l *DeviceUSBLoop) Run(ctx context.Context) error {
	l.dec.Reset()
	if err := l.port.SetReadTimeout(l.pollInterval); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := l.port.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			// Read timeout elapsed with no bytes: a chance to notice a
			// stalled in-flight envelope (§4.3 frame-receive timeout).
			if l.stream.InFlight() && !l.lastProgress.IsZero() && time.Since(l.lastProgress) > l.frameTimeout {
				l.stream.AbortFrame()
				l.trace.DecodeError(l.sessionID, "FrameTimeout", 1)
			}
			continue
		}

		l.lastProgress = time.Now()
		if l.stream.SpeedTesting() && l.speedTestStart.IsZero() {
			l.speedTestStart = time.Now()
		}
		for _, ev := range l.stream.Feed(buf[:n]) {
			l.handleEvent(ev)
		}
	}
}

func (l *DeviceUSBLoop) handleEvent(ev wire.Event) {
	switch ev.Kind {
	case wire.EventImage:
		begin := time.Now()
		ref, err := l.dec.DecodeXOR(ev.Width, ev.Height, ev.Compressed)
		l.trace.FrameReceived(l.sessionID, "XOR", len(ev.Compressed), err, time.Since(begin))
		if err != nil {
			kind, run := l.dec.LastError()
			l.trace.DecodeError(l.sessionID, kind.String(), run)
			return
		}
		if err := l.blitter.BlitRGB565(ev.X, ev.Y, ev.Width, ev.Height, ref); err != nil {
			l.trace.DecodeError(l.sessionID, "BlitFailure", 1)
		}
	case wire.EventSpeedTest:
		elapsed := time.Since(l.speedTestStart)
		l.speedTestStart = time.Time{}
		reply := wire.EncodeSpeedResult(ev.SpeedTestBytes, elapsed.Milliseconds())
		_, _ = l.port.Write([]byte(reply))
	case wire.EventReadInfo:
		reply := wire.EncodeDeviceInfoReply(l.width, l.height)
		_, _ = l.port.Write([]byte(reply))
	case wire.EventFrameAborted:
		l.trace.DecodeError(l.sessionID, "FrameTimeout", 1)
	}
}
