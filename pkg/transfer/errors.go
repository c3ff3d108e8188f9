package transfer

import "errors"

// Errors returned by Session and AsyncClient. Check with errors.Is.
var (
	// ErrConnection means the device was unreachable or rejected the
	// handshake.
	ErrConnection = errors.New("transfer: connection failed")

	// ErrSessionLost means the connection dropped mid-stream: a read
	// error, a liveness timeout, or a protocol violation.
	ErrSessionLost = errors.New("transfer: session lost")

	// ErrSessionFaulted is returned by ReceiveOne on a session that has
	// already faulted. A new session must be constructed to retry.
	ErrSessionFaulted = errors.New("transfer: session faulted")

	// ErrClientClosed is returned when operating on a closed AsyncClient.
	ErrClientClosed = errors.New("transfer: client closed")

	// ErrInvalidDevice is returned at construction time for a descriptor
	// that cannot be dialed.
	ErrInvalidDevice = errors.New("transfer: invalid device descriptor")
)
