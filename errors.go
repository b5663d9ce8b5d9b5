package anode

import (
	"errors"
	"fmt"
)

// Precondition and settlement errors surfaced by the session.
var (
	// ErrAlreadyConnected is returned by Connect when the session is already connected.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnecting is returned by Connect when an earlier connect attempt is
	// still in flight. Failing fast here avoids racing a second transport.
	ErrConnecting = errors.New("connection already in progress")

	// ErrNotConnected is returned when a request is issued without a live transport.
	ErrNotConnected = errors.New("not connected")

	// ErrDisconnected settles every request still outstanding when the
	// session is torn down.
	ErrDisconnected = errors.New("client disconnected")

	// ErrRequestTimeout settles a request whose response did not arrive
	// within the configured window. It does not close the transport.
	ErrRequestTimeout = errors.New("request timed out")
)

// TransportError wraps a failure in the underlying channel: a refused or
// unreachable connect, a non-2xx HTTP response, or a stream failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
