// Package replay records a stream of wire-framed codec frames to disk
// and plays them back at their original cadence, for deterministic
// testing of a device loop without a live capture source or socket.
package replay

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/screenstream/internal/codec"
)

// Recorder appends (elapsed, frame) pairs to an io.Writer as they are
// produced by a host loop.
type Recorder struct {
	w       io.Writer
	started time.Time
	mc      messageEncoder
}

type messageEncoder interface {
	Encode(f codec.Frame) []byte
}

// NewRecorder creates a Recorder writing through mc (typically
// wire.NewMessageCodec()) to w.
func NewRecorder(w io.Writer, mc messageEncoder) *Recorder {
	return &Recorder{w: w, mc: mc}
}

// Record appends one frame, tagged with the elapsed time since the
// first call to Record on this Recorder.
func (r *Recorder) Record(f codec.Frame) error {
	now := time.Now()
	if r.started.IsZero() {
		r.started = now
	}
	elapsed := now.Sub(r.started)

	msg := r.mc.Encode(f)
	var hdr [12]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(elapsed))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(msg)))
	if _, err := r.w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "replay: write header")
	}
	if _, err := r.w.Write(msg); err != nil {
		return errors.Wrap(err, "replay: write payload")
	}
	return nil
}

// Record is one (elapsed, wire message) pair read back by a Player.
type Record struct {
	Elapsed time.Duration
	Message []byte
}

// Player reads Records from an io.Reader in original-cadence order.
type Player struct {
	r io.Reader
}

// NewPlayer creates a Player reading from r.
func NewPlayer(r io.Reader) *Player {
	return &Player{r: r}
}

// Next reads the next Record, or io.EOF when the recording is exhausted.
func (p *Player) Next() (Record, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(p.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, errors.Wrap(err, "replay: truncated header")
		}
		return Record{}, err
	}
	elapsed := time.Duration(binary.BigEndian.Uint64(hdr[0:8]))
	n := binary.BigEndian.Uint32(hdr[8:12])
	msg := make([]byte, n)
	if _, err := io.ReadFull(p.r, msg); err != nil {
		return Record{}, errors.Wrap(err, "replay: truncated payload")
	}
	return Record{Elapsed: elapsed, Message: msg}, nil
}

// Play reads every Record from p and calls deliver for each, sleeping
// between records to reproduce the original capture cadence. It
// returns nil when the recording is exhausted.
func Play(p *Player, deliver func([]byte) error) error {
	var last time.Duration
	for {
		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if gap := rec.Elapsed - last; gap > 0 {
			time.Sleep(gap)
		}
		last = rec.Elapsed
		if err := deliver(rec.Message); err != nil {
			return err
		}
	}
}
