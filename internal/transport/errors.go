package transport

import "github.com/pkg/errors"

// Error kinds from §7 not already covered by codec.ErrorKind. Transport
// loop policy for each is implemented directly in the loop that can
// observe it; these sentinels exist so tests and trace hooks can
// classify a returned error with errors.Is rather than string matching.
var (
	// ErrTransportClosed means the peer hung up or a write failed.
	// Policy: drop the socket/port, reset the encoder, reconnect.
	ErrTransportClosed = errors.New("transport: closed")

	// ErrAckTimeout means no ACK/NACK arrived within the read deadline
	// on the WebSocket path. Policy: reset the encoder; keep the link.
	ErrAckTimeout = errors.New("transport: ack timeout")

	// ErrNacked means the device sent an explicit NACK. Policy: reset
	// the encoder; continue.
	ErrNacked = errors.New("transport: nacked")

	// ErrLowMemory means the device reported free heap below the
	// critical threshold. Policy: close the session.
	ErrLowMemory = errors.New("transport: low memory")
)
