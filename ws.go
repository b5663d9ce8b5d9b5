package anode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

const wsReadLimit = 1 << 22 // screenshots arrive as base64 text frames

// WSTransport is the persistent bidirectional socket transport. It carries
// one JSON-RPC envelope per text frame over a single long-lived WebSocket
// connection.
//
// Instances are single-use: a closed WSTransport cannot be reopened. The
// session creates a fresh one for every connect attempt.
type WSTransport struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	reason string

	messages chan JSONRPCMessage
}

// WSTransportOption configures a WSTransport.
type WSTransportOption func(*WSTransport)

// WithWSLogger sets the logger used for transport diagnostics.
func WithWSLogger(logger *slog.Logger) WSTransportOption {
	return func(t *WSTransport) {
		t.logger = logger
	}
}

// NewWSTransport creates a socket transport that connects to the given
// ws:// URL. The transport is not connected until Open is called.
func NewWSTransport(url string, options ...WSTransportOption) *WSTransport {
	t := &WSTransport{
		url:      url,
		logger:   slog.Default(),
		messages: make(chan JSONRPCMessage),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Open dials the server and starts the inbound read loop. It fails with a
// TransportError if the peer is refused or unreachable.
func (t *WSTransport) Open(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, t.url, nil) //nolint:bodyclose // closed by the websocket library
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	conn.SetReadLimit(wsReadLimit)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "transport closed")
		return &TransportError{Op: "dial", Err: errors.New("transport closed")}
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)

	return nil
}

// Send marshals the message and writes it as a single text frame.
func (t *WSTransport) Send(ctx context.Context, msg JSONRPCMessage) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}

	msgBs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, msgBs); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// Messages returns an iterator over inbound frames. The iteration ends when
// the connection closes.
func (t *WSTransport) Messages() iter.Seq[JSONRPCMessage] {
	return func(yield func(JSONRPCMessage) bool) {
		for msg := range t.messages {
			if !yield(msg) {
				return
			}
		}
	}
}

// Close tears down the connection. It is idempotent and safe to call on a
// transport that was never opened.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.reason == "" {
		t.reason = "client closed"
	}
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
	}
	return nil
}

// CloseReason reports why the connection closed.
func (t *WSTransport) CloseReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	defer close(t.messages)

	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			t.setReason(err)
			return
		}

		var msg JSONRPCMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Error("failed to unmarshal frame", "err", err)
			continue
		}

		t.messages <- msg
	}
}

func (t *WSTransport) setReason(err error) {
	reason := err.Error()
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		reason = ce.Reason
		if reason == "" {
			reason = ce.Code.String()
		}
	}

	t.mu.Lock()
	if t.reason == "" {
		t.reason = reason
	}
	t.mu.Unlock()
}
