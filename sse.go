package anode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// StreamTransport is the server-push stream transport. Inbound frames arrive
// over a Server-Sent Events stream opened with a GET to the events path;
// outbound requests are issued as independent POSTs to the message path.
// Each POST's HTTP response body is itself a protocol response, exposed
// through RoundTrip, so on this transport a request's answer is coupled to
// the send at the HTTP layer rather than delivered through the inbound
// stream.
//
// Instances are single-use, like WSTransport.
type StreamTransport struct {
	httpClient *http.Client
	eventsURL  string
	messageURL string
	logger     *slog.Logger

	maxPayloadSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
	reason string

	messages chan JSONRPCMessage
}

// StreamTransportOption configures a StreamTransport.
type StreamTransportOption func(*StreamTransport)

// WithStreamLogger sets the logger used for transport diagnostics.
func WithStreamLogger(logger *slog.Logger) StreamTransportOption {
	return func(t *StreamTransport) {
		t.logger = logger
	}
}

// WithStreamMaxPayloadSize sets the maximum size of a single event payload
// received from the server.
func WithStreamMaxPayloadSize(size int) StreamTransportOption {
	return func(t *StreamTransport) {
		t.maxPayloadSize = size
	}
}

// NewStreamTransport creates a stream transport rooted at the given
// http:// base URL. The events stream is read from <base>/mcp/events and
// requests are posted to <base>/mcp/message. A nil httpClient selects
// http.DefaultClient.
func NewStreamTransport(baseURL string, httpClient *http.Client, options ...StreamTransportOption) *StreamTransport {
	cli := httpClient
	if cli == nil {
		cli = http.DefaultClient
	}
	t := &StreamTransport{
		httpClient: cli,
		eventsURL:  baseURL + "/mcp/events",
		messageURL: baseURL + "/mcp/message",
		logger:     slog.Default(),
		messages:   make(chan JSONRPCMessage),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Open issues the GET that establishes the push stream and starts reading
// events from it. A non-200 response is a TransportError.
func (t *StreamTransport) Open(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		return &TransportError{Op: "connect", Err: errors.New("transport closed")}
	}
	t.cancel = cancel
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(runCtx, http.MethodGet, t.eventsURL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		cancel()
		return &TransportError{Op: "connect", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return &TransportError{Op: "connect", Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	go t.readEvents(resp.Body)

	return nil
}

// Send posts the message without consuming the response envelope. It is used
// for notifications; correlated requests go through RoundTrip instead.
func (t *StreamTransport) Send(ctx context.Context, msg JSONRPCMessage) error {
	resp, err := t.post(ctx, msg)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RoundTrip posts the message and decodes the HTTP response body as the
// protocol response to it.
func (t *StreamTransport) RoundTrip(ctx context.Context, msg JSONRPCMessage) (JSONRPCMessage, error) {
	resp, err := t.post(ctx, msg)
	if err != nil {
		return JSONRPCMessage{}, err
	}
	defer resp.Body.Close()

	var res JSONRPCMessage
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return JSONRPCMessage{}, &TransportError{Op: "post", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return res, nil
}

// Messages returns an iterator over frames pushed on the events stream.
func (t *StreamTransport) Messages() iter.Seq[JSONRPCMessage] {
	return func(yield func(JSONRPCMessage) bool) {
		for msg := range t.messages {
			if !yield(msg) {
				return
			}
		}
	}
}

// Close cancels the push stream. It is idempotent and safe to call on a
// transport that was never opened.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.reason == "" {
		t.reason = "client closed"
	}
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// CloseReason reports why the stream ended.
func (t *StreamTransport) CloseReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

func (t *StreamTransport) post(ctx context.Context, msg JSONRPCMessage) (*http.Response, error) {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.messageURL, bytes.NewReader(msgBs))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "post", Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, &TransportError{Op: "post", Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	return resp, nil
}

func (t *StreamTransport) readEvents(body io.ReadCloser) {
	defer func() {
		body.Close()
		close(t.messages)
	}()

	var config *sse.ReadConfig
	if t.maxPayloadSize > 0 {
		config = &sse.ReadConfig{MaxEventSize: t.maxPayloadSize}
	}

	for ev, err := range sse.Read(body, config) {
		if err != nil {
			t.setReason(err)
			return
		}

		var msg JSONRPCMessage
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			t.logger.Error("failed to unmarshal event", "err", err)
			continue
		}

		t.messages <- msg
	}

	t.setReason(errors.New("event stream ended"))
}

func (t *StreamTransport) setReason(err error) {
	reason := err.Error()
	if errors.Is(err, context.Canceled) {
		reason = "client closed"
	}

	t.mu.Lock()
	if t.reason == "" {
		t.reason = reason
	}
	t.mu.Unlock()
}
