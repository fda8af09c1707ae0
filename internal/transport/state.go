package transport

// State is a transport loop's connection state (§4.4, §9 "state
// machines over exceptions").
type State uint8

const (
	// Disconnected is the initial state and the state entered after any
	// write error, close frame, or configuration change.
	Disconnected State = iota
	// Connecting is entered while a handshake is in flight.
	Connecting
	// Connected is entered once the handshake succeeds, before the
	// capture-encode-send cycle starts.
	Connected
	// Streaming is the steady-state capture-encode-send (host) or
	// receive-decode-blit (device) cycle.
	Streaming
)

// String renders State for logging.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Streaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}
