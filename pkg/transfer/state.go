package transfer

// State is the lifecycle state of a Session.
type State int

const (
	// StateDisconnected is the initial state before Connect.
	StateDisconnected State = iota

	// StateHandshaking means Connect is dialing and negotiating.
	StateHandshaking

	// StateStreaming means the handshake succeeded and frames are being
	// received.
	StateStreaming

	// StateFaulted is terminal: the handshake failed, the connection was
	// lost, or the session was closed.
	StateFaulted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateHandshaking:
		return "Handshaking"
	case StateStreaming:
		return "Streaming"
	case StateFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}
