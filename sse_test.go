package anode_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	anode "github.com/lsy1770/anode-mcp-client"
)

// streamServer is a fake device MCP server speaking the stream transport:
// a push stream on /mcp/events and request/response POSTs on /mcp/message
// where the POST body is answered directly in the HTTP response.
type streamServer struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	ids     []uint64
	streams []chan string
}

func newStreamServer(t *testing.T) *streamServer {
	s := &streamServer{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mcp/events", s.handleEvents)
	mux.HandleFunc("POST /mcp/message", s.handleMessage)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *streamServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.t.Error("response writer is not a flusher")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan string, 8)
	s.mu.Lock()
	s.streams = append(s.streams, events)
	s.mu.Unlock()

	for {
		select {
		case data := <-events:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *streamServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg anode.JSONRPCMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.ID == 0 {
		// Notification: accepted, nothing in the body.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.mu.Lock()
	s.ids = append(s.ids, msg.ID)
	s.mu.Unlock()

	res := anode.JSONRPCMessage{JSONRPC: anode.JSONRPCVersion, ID: msg.ID}
	switch msg.Method {
	case "initialize":
		res.Result = json.RawMessage(initializeResultJSON)
	case "ping":
		res.Result = json.RawMessage(`{}`)
	case anode.MethodToolsCall:
		var params anode.CallToolParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if params.Name == "slow" {
			// Stall until the client gives up on the request.
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
				return
			}
		}
		res.Result = json.RawMessage(
			`{"content":[{"type":"text","text":"{\"tool\":\"` + params.Name + `\"}"}]}`)
	default:
		res.Error = &anode.JSONRPCError{Code: -32601, Message: "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.t.Logf("failed to encode response: %v", err)
	}
}

func (s *streamServer) push(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		s.t.Fatal("no event stream to push on")
	}
	s.streams[len(s.streams)-1] <- data
}

func (s *streamServer) streamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func TestStreamTransportRoundTrip(t *testing.T) {
	server := newStreamServer(t)
	transport := anode.NewStreamTransport(server.srv.URL, server.srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := transport.Open(ctx); err != nil {
		t.Fatalf("failed to open transport: %v", err)
	}
	defer transport.Close()

	res, err := transport.RoundTrip(ctx, anode.JSONRPCMessage{
		JSONRPC: anode.JSONRPCVersion,
		ID:      7,
		Method:  "ping",
	})
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if res.ID != 7 {
		t.Errorf("got response id %d, want 7", res.ID)
	}
	if res.Error != nil {
		t.Errorf("unexpected error in response: %v", res.Error)
	}
}

func TestStreamTransportMessages(t *testing.T) {
	server := newStreamServer(t)
	transport := anode.NewStreamTransport(server.srv.URL, server.srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := transport.Open(ctx); err != nil {
		t.Fatalf("failed to open transport: %v", err)
	}
	defer transport.Close()

	waitFor(t, 2*time.Second, func() bool { return server.streamCount() == 1 },
		"event stream never opened")

	// A malformed frame must be skipped, not end the stream.
	server.push(`{not json`)
	server.push(`{"jsonrpc":"2.0","method":"device/battery","params":{"level":9}}`)

	var got anode.JSONRPCMessage
	received := make(chan struct{})
	go func() {
		for msg := range transport.Messages() {
			got = msg
			close(received)
			return
		}
	}()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("pushed frame never arrived")
	}
	if got.Method != "device/battery" {
		t.Errorf("got method %q, want %q", got.Method, "device/battery")
	}
}

func TestStreamTransportOpenBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	transport := anode.NewStreamTransport(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := transport.Open(ctx)
	var tErr *anode.TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("got %v, want TransportError", err)
	}
}

func TestStreamTransportClose(t *testing.T) {
	server := newStreamServer(t)
	transport := anode.NewStreamTransport(server.srv.URL, server.srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := transport.Open(ctx); err != nil {
		t.Fatalf("failed to open transport: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for range transport.Messages() {
		}
		close(done)
	}()

	if err := transport.Close(); err != nil {
		t.Fatalf("failed to close transport: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message stream never ended after close")
	}
	if got := transport.CloseReason(); got != "client closed" {
		t.Errorf("got close reason %q, want %q", got, "client closed")
	}
}

func TestClientOverStreamTransport(t *testing.T) {
	server := newStreamServer(t)
	host, port := hostPort(t, server.srv.URL)
	client := anode.NewClient(clientInfo(), anode.Config{
		Host:          host,
		HTTPPort:      port,
		Transport:     anode.TransportStream,
		AutoReconnect: boolPtr(false),
	})

	rec := &eventRecorder{}
	rec.attach(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Disconnect()

	if got := client.ServerInfo().Name; got != "fake-device" {
		t.Errorf("got server name %q, want %q", got, "fake-device")
	}

	// Requests are answered in the POST response body, not over the stream.
	res, err := client.CallTool(ctx, "tap", map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("tool call failed: %v", err)
	}
	decoded, ok := res.(map[string]any)
	if !ok {
		t.Fatalf("got %T, want decoded object", res)
	}
	if decoded["tool"] != "tap" {
		t.Errorf("got %v, want tool=tap", decoded)
	}

	// The stream still carries server-initiated notifications.
	server.push(`{"jsonrpc":"2.0","method":"device/orientation","params":{"value":"portrait"}}`)
	waitFor(t, 2*time.Second, func() bool {
		log := rec.notificationLog()
		return len(log) == 1 && log[0] == "device/orientation"
	}, "notification never reached the client")
}

func TestStreamRequestTimeout(t *testing.T) {
	server := newStreamServer(t)
	host, port := hostPort(t, server.srv.URL)
	client := anode.NewClient(clientInfo(), anode.Config{
		Host:          host,
		HTTPPort:      port,
		Transport:     anode.TransportStream,
		AutoReconnect: boolPtr(false),
		TimeoutMS:     150,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Disconnect()

	if _, err := client.CallTool(ctx, "slow", nil); !errors.Is(err, anode.ErrRequestTimeout) {
		t.Fatalf("got %v, want ErrRequestTimeout", err)
	}
}

func TestStreamCallerDeadlineIsNotRequestTimeout(t *testing.T) {
	server := newStreamServer(t)
	host, port := hostPort(t, server.srv.URL)
	client := anode.NewClient(clientInfo(), anode.Config{
		Host:          host,
		HTTPPort:      port,
		Transport:     anode.TransportStream,
		AutoReconnect: boolPtr(false),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Disconnect()

	// The caller's deadline is far shorter than the configured request
	// timeout; its expiry must surface as the caller's error.
	callCtx, callCancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer callCancel()

	_, err := client.CallTool(callCtx, "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, anode.ErrRequestTimeout) {
		t.Error("caller deadline misreported as the request timeout")
	}
}
