package anode

// State represents the lifecycle state of a client session.
type State int

// Session states. A session starts disconnected, moves to connecting on
// Connect, to connected once the handshake completes, and to error when the
// connect attempt fails. Transport closure returns it to disconnected.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
