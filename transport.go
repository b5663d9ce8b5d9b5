package anode

import (
	"context"
	"iter"
)

// Transport provides the communication channel between the client and the
// device server. Implementations do not reconnect on their own; reconnection
// is entirely the session's responsibility.
type Transport interface {
	// Open establishes the underlying channel. It returns once the channel is
	// ready to carry messages, or a TransportError if the peer is refused,
	// unreachable, or fails at the protocol level.
	Open(ctx context.Context) error

	// Send transmits a single message to the server.
	Send(ctx context.Context, msg JSONRPCMessage) error

	// Messages returns an iterator that yields decoded inbound frames in the
	// order the transport delivers them. The iteration ends when the
	// connection closes, by either side.
	Messages() iter.Seq[JSONRPCMessage]

	// Close tears down the channel. It is idempotent and safe to call on a
	// transport that was never opened.
	Close() error

	// CloseReason reports why the connection closed. It is valid once the
	// Messages iteration has ended.
	CloseReason() string
}

// RoundTripper is implemented by transports whose send operation carries its
// own response at the wire level, such as the stream transport where each
// POST's HTTP response body is itself a protocol response. The session routes
// a round-tripped answer directly to the waiting caller instead of through
// the inbound message stream.
type RoundTripper interface {
	RoundTrip(ctx context.Context, msg JSONRPCMessage) (JSONRPCMessage, error)
}
