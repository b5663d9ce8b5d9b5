package anode

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// ConnectHandler observes successful connections.
type ConnectHandler func()

// DisconnectHandler observes disconnections with the reason the connection
// ended. Client-initiated teardown reports "client initiated".
type DisconnectHandler func(reason string)

// ErrorHandler observes connection and handshake failures.
type ErrorHandler func(err error)

// NotificationHandler observes unsolicited server notifications.
type NotificationHandler func(method string, params json.RawMessage)

// StateChangeHandler observes session state transitions. It fires only when
// the new state differs from the previous one.
type StateChangeHandler func(state State)

// eventHandlers holds one ordered handler list per event variant. Handlers
// run synchronously in registration order; a handler registered more than
// once runs that many times. A panicking handler is recovered and logged so
// the remaining handlers still run.
type eventHandlers struct {
	logger *slog.Logger

	mu           sync.Mutex
	connect      []ConnectHandler
	disconnect   []DisconnectHandler
	errs         []ErrorHandler
	notification []NotificationHandler
	stateChange  []StateChangeHandler
}

func (h *eventHandlers) emitConnect() {
	h.mu.Lock()
	handlers := append([]ConnectHandler(nil), h.connect...)
	h.mu.Unlock()

	for _, handler := range handlers {
		h.invoke("connect", func() { handler() })
	}
}

func (h *eventHandlers) emitDisconnect(reason string) {
	h.mu.Lock()
	handlers := append([]DisconnectHandler(nil), h.disconnect...)
	h.mu.Unlock()

	for _, handler := range handlers {
		h.invoke("disconnect", func() { handler(reason) })
	}
}

func (h *eventHandlers) emitError(err error) {
	h.mu.Lock()
	handlers := append([]ErrorHandler(nil), h.errs...)
	h.mu.Unlock()

	for _, handler := range handlers {
		h.invoke("error", func() { handler(err) })
	}
}

func (h *eventHandlers) emitNotification(method string, params json.RawMessage) {
	h.mu.Lock()
	handlers := append([]NotificationHandler(nil), h.notification...)
	h.mu.Unlock()

	for _, handler := range handlers {
		h.invoke("notification", func() { handler(method, params) })
	}
}

func (h *eventHandlers) emitStateChange(state State) {
	h.mu.Lock()
	handlers := append([]StateChangeHandler(nil), h.stateChange...)
	h.mu.Unlock()

	for _, handler := range handlers {
		h.invoke("stateChange", func() { handler(state) })
	}
}

func (h *eventHandlers) invoke(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	fn()
}
