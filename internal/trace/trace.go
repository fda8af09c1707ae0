// Package trace provides a composable set of hook functions that a
// transport loop invokes at well-known points, the same shape the
// teacher codebase uses for its client-side connection tracing,
// generalized from SSH/NETCONF connect-read-write events to the
// streaming core's connect/frame/state-transition events.
package trace

import (
	"context"
	"log"
	"time"

	"github.com/imdario/mergo"
)

// unique type to prevent assignment from outside this package.
type traceContextKey struct{}

// ContextTrace returns the Trace associated with ctx, merged over
// NoOpHooks so every field is safe to call unconditionally. If ctx
// carries no Trace, NoOpHooks is returned directly.
func ContextTrace(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceContextKey{}).(*Trace)
	if t == nil {
		return NoOpHooks
	}
	merged := *t
	_ = mergo.Merge(&merged, NoOpHooks)
	return &merged
}

// WithTrace returns a context derived from ctx that carries trace,
// for use by a transport loop started with that context.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// Trace defines the hook points a transport loop calls out to. Loops
// call the fields of the Trace they are given directly, so a Trace
// passed to a loop must have every field set. DefaultHooks, MetricHooks
// and DiagnosticHooks have their unset fields filled with the NoOpHooks
// counterparts at package init, and ContextTrace does the same for a
// Trace carried in a context. Every hook's leading sessionID
// argument is a uuid.New().String() value minted once per loop
// instance, so overlapping host/device log lines from several
// concurrent sessions can be told apart.
type Trace struct {
	// ConnectStart is called when a loop begins connecting to target
	// (a WebSocket URL or a serial device path).
	ConnectStart func(sessionID, target string)

	// ConnectDone is called when the connection attempt completes, err
	// indicating whether it succeeded.
	ConnectDone func(sessionID, target string, err error, d time.Duration)

	// ConnectionClosed is called after the transport has been closed.
	ConnectionClosed func(sessionID, target string, err error)

	// StateChange is called whenever a loop transitions between
	// Disconnected/Connecting/Connected/Streaming states.
	StateChange func(sessionID, target string, from, to string)

	// FrameEncoded is called after the host encoder produces a frame,
	// before it is written to the wire.
	FrameEncoded func(sessionID, kind string, compressedLen int)

	// FrameSent is called after a frame has been written to the wire.
	FrameSent func(sessionID, kind string, wireLen int, err error, d time.Duration)

	// FrameReceived is called after a frame has been read off the wire
	// and decoded, err indicating a decode failure.
	FrameReceived func(sessionID, kind string, wireLen int, err error, d time.Duration)

	// AckReceived is called when the device's ACK/NACK for a frame
	// arrives; ok is false for a NACK.
	AckReceived func(sessionID string, ok bool)

	// DecodeError is called each time the device decoder reports an
	// error, along with the current consecutive-failure run length.
	DecodeError func(sessionID, kind string, run uint32)

	// KeyframeForced is called when the encoder emits a KEY frame for a
	// reason other than the periodic interval (first frame, a geometry
	// change, or a same-frame resync after a prior error).
	KeyframeForced func(sessionID, reason string)
}

// DefaultHooks logs only errors and state transitions.
var DefaultHooks = &Trace{
	ConnectionClosed: func(sessionID, target string, err error) {
		log.Printf("screenstream: session:%s connection closed target:%s err:%v", sessionID, target, err)
	},
	StateChange: func(sessionID, target string, from, to string) {
		log.Printf("screenstream: session:%s %s %s -> %s", sessionID, target, from, to)
	},
	DecodeError: func(sessionID, kind string, run uint32) {
		log.Printf("screenstream: session:%s decode error kind:%s run:%d", sessionID, kind, run)
	},
}

// MetricHooks logs per-frame timing alongside connection events.
var MetricHooks = &Trace{
	ConnectDone: func(sessionID, target string, err error, d time.Duration) {
		log.Printf("screenstream: session:%s connect target:%s err:%v took:%dms", sessionID, target, err, d.Milliseconds())
	},
	FrameSent: func(sessionID, kind string, wireLen int, err error, d time.Duration) {
		log.Printf("screenstream: session:%s sent kind:%s len:%d err:%v took:%dms", sessionID, kind, wireLen, err, d.Milliseconds())
	},
	FrameReceived: func(sessionID, kind string, wireLen int, err error, d time.Duration) {
		log.Printf("screenstream: session:%s recv kind:%s len:%d err:%v took:%dms", sessionID, kind, wireLen, err, d.Milliseconds())
	},
	ConnectionClosed: DefaultHooks.ConnectionClosed,
	StateChange:      DefaultHooks.StateChange,
	DecodeError:      DefaultHooks.DecodeError,
}

// DiagnosticHooks additionally logs connect/frame starts and ACK/NACK
// traffic.
var DiagnosticHooks = &Trace{
	ConnectStart: func(sessionID, target string) {
		log.Printf("screenstream: session:%s connecting target:%s", sessionID, target)
	},
	ConnectDone:      MetricHooks.ConnectDone,
	ConnectionClosed: DefaultHooks.ConnectionClosed,
	StateChange:      DefaultHooks.StateChange,
	FrameEncoded: func(sessionID, kind string, compressedLen int) {
		log.Printf("screenstream: session:%s encoded kind:%s len:%d", sessionID, kind, compressedLen)
	},
	FrameSent:     MetricHooks.FrameSent,
	FrameReceived: MetricHooks.FrameReceived,
	AckReceived: func(sessionID string, ok bool) {
		log.Printf("screenstream: session:%s ack ok:%v", sessionID, ok)
	},
	DecodeError: DefaultHooks.DecodeError,
	KeyframeForced: func(sessionID, reason string) {
		log.Printf("screenstream: session:%s keyframe forced reason:%s", sessionID, reason)
	},
}

// NoOpHooks is a Trace whose every field is a callable no-op, used as
// the merge base by ContextTrace so callers never need a nil check.
var NoOpHooks = &Trace{
	ConnectStart:     func(sessionID, target string) {},
	ConnectDone:      func(sessionID, target string, err error, d time.Duration) {},
	ConnectionClosed: func(sessionID, target string, err error) {},
	StateChange:      func(sessionID, target string, from, to string) {},
	FrameEncoded:     func(sessionID, kind string, compressedLen int) {},
	FrameSent:        func(sessionID, kind string, wireLen int, err error, d time.Duration) {},
	FrameReceived:    func(sessionID, kind string, wireLen int, err error, d time.Duration) {},
	AckReceived:      func(sessionID string, ok bool) {},
	DecodeError:      func(sessionID, kind string, run uint32) {},
	KeyframeForced:   func(sessionID, reason string) {},
}

func init() {
	for _, t := range []*Trace{DefaultHooks, MetricHooks, DiagnosticHooks} {
		_ = mergo.Merge(t, NoOpHooks)
	}
}
