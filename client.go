package anode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ClientOption is a function that configures a client.
type ClientOption func(*Client)

// Client is a session with a device MCP server. It owns at most one live
// transport, drives the connect handshake, correlates requests with
// responses, dispatches unsolicited notifications, and schedules
// reconnection after unexpected transport loss.
//
// A Client must be created with NewClient and connected with Connect before
// remote calls can be made. Multiple Client instances are fully independent.
//
// Event handlers and the notification observer run synchronously on the
// session's read loop; a handler that needs to issue requests of its own
// should do so from a separate goroutine.
type Client struct {
	info       Info
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	correlator correlator
	handlers   eventHandlers

	mu                 sync.Mutex
	state              State
	transport          Transport
	serverInfo         Info
	serverCapabilities ServerCapabilities
	reconnect          *time.Timer
	closing            bool
}

// WithLogger sets the logger used by the client and its transports.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used by the stream transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a client for the device server described by cfg. The
// info parameter identifies this client during the protocol handshake.
// Defaults are applied to any config field left unset; the client is not
// connected until Connect is called.
func NewClient(info Info, cfg Config, options ...ClientOption) *Client {
	c := &Client{
		info:  info,
		cfg:   cfg.withDefaults(),
		state: StateDisconnected,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("client_id", uuid.New().String())
	c.handlers.logger = c.logger

	return c
}

// OnConnect registers a handler for successful connections.
func (c *Client) OnConnect(handler ConnectHandler) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.connect = append(c.handlers.connect, handler)
}

// OnDisconnect registers a handler for disconnections.
func (c *Client) OnDisconnect(handler DisconnectHandler) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.disconnect = append(c.handlers.disconnect, handler)
}

// OnError registers a handler for connection and handshake failures.
func (c *Client) OnError(handler ErrorHandler) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.errs = append(c.handlers.errs, handler)
}

// OnNotification registers a handler for unsolicited server notifications.
func (c *Client) OnNotification(handler NotificationHandler) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.notification = append(c.handlers.notification, handler)
}

// OnStateChange registers a handler for session state transitions.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.stateChange = append(c.handlers.stateChange, handler)
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ServerInfo returns the server descriptor negotiated during the handshake.
func (c *Client) ServerInfo() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// ServerCapabilities returns the capability flags negotiated during the
// handshake.
func (c *Client) ServerCapabilities() ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverCapabilities
}

// Connect opens the configured transport and performs the protocol
// handshake. It returns ErrAlreadyConnected when the session is connected
// and ErrConnecting when an earlier attempt is still in flight. Open or
// handshake failure moves the session to the error state, emits an error
// event, and is returned to the caller.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnecting
	}
	c.closing = false
	changed := c.state != StateConnecting
	c.state = StateConnecting
	t := c.newTransport()
	c.transport = t
	c.mu.Unlock()

	if changed {
		c.handlers.emitStateChange(StateConnecting)
	}

	if err := t.Open(ctx); err != nil {
		c.connectFailed(t, err)
		return err
	}

	go c.listen(t)

	if err := c.handshake(ctx, t); err != nil {
		// Disown the transport before closing it so the read loop does not
		// treat the closure as an unexpected disconnect.
		c.connectFailed(t, err)
		_ = t.Close()
		return err
	}

	c.mu.Lock()
	if c.transport != t {
		// Torn down while the handshake was completing.
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.state = StateConnected
	if c.reconnect != nil {
		// A scheduled retry is obsolete once the session is connected.
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.mu.Unlock()

	c.handlers.emitStateChange(StateConnected)
	c.handlers.emitConnect()

	if err := c.notify(ctx, methodNotificationsInitialized, nil); err != nil {
		c.logger.Error("failed to send initialized notification", "err", err)
	}

	c.logger.Info("connected", "server", c.ServerInfo().Name, "transport", string(c.cfg.Transport))
	return nil
}

// Disconnect tears the session down from any state: it cancels a pending
// reconnect, closes the transport, fails every outstanding request with
// ErrDisconnected, and emits a disconnect event tagged "client initiated".
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closing = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	t := c.transport
	c.transport = nil
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
	c.correlator.failAll(ErrDisconnected)

	if changed {
		c.handlers.emitStateChange(StateDisconnected)
	}
	c.handlers.emitDisconnect("client initiated")

	return nil
}

// Ping issues a protocol-level ping request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sendRequest(ctx, methodPing, nil)
	return err
}

// sendRequest issues one correlated request and returns the raw result, or
// an error from the settlement paths: a server error envelope, the request
// timeout, or session teardown. Without a live transport it fails
// immediately with ErrNotConnected.
func (c *Client) sendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	t := c.transport
	c.mu.Unlock()

	res, err := c.roundTrip(ctx, t, method, params)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Result, nil
}

// roundTrip sends one request over the given transport and waits for its
// response. On a RoundTripper transport the HTTP response is the result and
// no pending entry is registered; otherwise the request is tracked in the
// pending table until a settlement path fires.
func (c *Client) roundTrip(ctx context.Context, t Transport, method string, params any) (JSONRPCMessage, error) {
	var paramsBs json.RawMessage
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return JSONRPCMessage{}, fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsBs = bs
	}

	if rt, ok := t.(RoundTripper); ok {
		msg := JSONRPCMessage{
			JSONRPC: JSONRPCVersion,
			ID:      c.correlator.allocID(),
			Method:  method,
			Params:  paramsBs,
		}

		rtCtx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
		defer cancel()

		res, err := rt.RoundTrip(rtCtx, msg)
		if err != nil {
			if ctx.Err() != nil {
				// The caller's own context expired or was canceled.
				return JSONRPCMessage{}, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return JSONRPCMessage{}, ErrRequestTimeout
			}
			return JSONRPCMessage{}, err
		}
		return res, nil
	}

	id, results := c.correlator.register(c.cfg.timeout())
	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsBs,
	}

	if err := t.Send(ctx, msg); err != nil {
		c.correlator.discard(id)
		return JSONRPCMessage{}, err
	}

	select {
	case <-ctx.Done():
		c.correlator.discard(id)
		return JSONRPCMessage{}, ctx.Err()
	case res := <-results:
		return res.msg, res.err
	}
}

// notify sends a notification, which expects no response.
func (c *Client) notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return ErrNotConnected
	}

	var paramsBs json.RawMessage
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsBs = bs
	}

	return t.Send(ctx, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsBs,
	})
}

// handshake performs the single correlated initialize round-trip and caches
// the server descriptor and capability flags on the session.
func (c *Client) handshake(ctx context.Context, t Transport) error {
	res, err := c.roundTrip(ctx, t, methodInitialize, initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    ClientCapabilities{},
		ClientInfo:      c.info,
	})
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if res.Error != nil {
		return fmt.Errorf("initialize failed: %w", res.Error)
	}

	var result initializeResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return fmt.Errorf("failed to unmarshal initialize result: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.mu.Unlock()

	return nil
}

// listen consumes the transport's message stream, routing each frame, and
// handles the closure once the stream ends.
func (c *Client) listen(t Transport) {
	for msg := range t.Messages() {
		c.route(msg)
	}
	c.transportClosed(t)
}

// route classifies one inbound frame: a frame with an id is a response and
// goes to the correlator (unknown or already-settled ids are dropped); a
// frame with a method is a notification for the observers; anything else is
// malformed and dropped with a diagnostic.
func (c *Client) route(msg JSONRPCMessage) {
	switch {
	case msg.ID != 0:
		if !c.correlator.settle(msg) {
			c.logger.Debug("dropping response with no pending request", "id", msg.ID)
		}
	case msg.Method != "":
		c.handlers.emitNotification(msg.Method, msg.Params)
	default:
		c.logger.Error("dropping frame with neither id nor method")
	}
}

// transportClosed handles the end of a transport's message stream. For the
// session's live transport this is an unexpected closure: pending requests
// fail, the session becomes disconnected, and a reconnect is scheduled when
// enabled. Streams of transports already replaced or torn down are ignored.
func (c *Client) transportClosed(t Transport) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	reason := t.CloseReason()
	if c.cfg.autoReconnect() && !c.closing && c.reconnect == nil {
		c.reconnect = time.AfterFunc(c.cfg.reconnectInterval(), c.reconnectNow)
	}
	c.mu.Unlock()

	c.logger.Warn("transport closed", "reason", reason)
	c.correlator.failAll(ErrDisconnected)

	if changed {
		c.handlers.emitStateChange(StateDisconnected)
	}
	c.handlers.emitDisconnect(reason)
}

// reconnectNow runs on the reconnect timer: one connect attempt, re-arming
// the timer on failure. The loop runs at a fixed interval with no backoff
// and no attempt cap, until success or explicit disconnect.
func (c *Client) reconnectNow() {
	c.mu.Lock()
	c.reconnect = nil
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.timeout())
	defer cancel()

	err := c.Connect(ctx)
	if err == nil || errors.Is(err, ErrAlreadyConnected) {
		// Connected, by this attempt or another; the retry loop is over.
		return
	}
	c.logger.Debug("reconnect attempt failed", "err", err)

	c.mu.Lock()
	if !c.closing && c.reconnect == nil {
		c.reconnect = time.AfterFunc(c.cfg.reconnectInterval(), c.reconnectNow)
	}
	c.mu.Unlock()
}

// connectFailed moves the session to the error state after a failed open or
// handshake, unless the transport was already replaced or torn down.
func (c *Client) connectFailed(t Transport, err error) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	changed := c.state != StateError
	c.state = StateError
	c.mu.Unlock()

	if changed {
		c.handlers.emitStateChange(StateError)
	}
	c.handlers.emitError(err)
}

func (c *Client) newTransport() Transport {
	switch c.cfg.Transport {
	case TransportStream:
		base := fmt.Sprintf("http://%s:%d", c.cfg.Host, c.cfg.HTTPPort)
		return NewStreamTransport(base, c.httpClient, WithStreamLogger(c.logger))
	default:
		url := fmt.Sprintf("ws://%s:%d", c.cfg.Host, c.cfg.WSPort)
		return NewWSTransport(url, WithWSLogger(c.logger))
	}
}
