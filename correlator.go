package anode

import (
	"sync"
	"time"
)

// pendingResult carries the settlement of one outstanding round-trip:
// exactly one of msg or err is meaningful.
type pendingResult struct {
	msg JSONRPCMessage
	err error
}

// pendingRequest represents one outstanding round-trip. It is owned
// exclusively by the correlator's pending table from registration until
// settlement.
type pendingRequest struct {
	ch    chan pendingResult
	timer *time.Timer
}

// correlator assigns monotonically increasing ids to outbound requests and
// tracks the in-flight ones. Ids start at 1 and are never reused for the
// lifetime of a client instance, including across reconnects.
//
// Settlement paths are mutually exclusive: a matching response, the deadline
// timer, or a bulk teardown. Removal from the table and settlement happen
// under one lock, so an entry can never be settled twice and a late response
// for an already-settled id finds nothing to match.
type correlator struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pendingRequest
}

// allocID returns the next request id without registering a pending entry.
// Used on transports where the send carries its own response.
func (c *correlator) allocID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// register allocates the next id and creates a pending entry whose deadline
// timer settles it with ErrRequestTimeout.
func (c *correlator) register(timeout time.Duration) (uint64, <-chan pendingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.pending == nil {
		c.pending = make(map[uint64]*pendingRequest)
	}

	p := &pendingRequest{ch: make(chan pendingResult, 1)}
	p.timer = time.AfterFunc(timeout, func() {
		c.fail(id, ErrRequestTimeout)
	})
	c.pending[id] = p

	return id, p.ch
}

// settle resolves the pending entry matching the response's id. It reports
// false when the id matches nothing, in which case the response must be
// dropped.
func (c *correlator) settle(msg JSONRPCMessage) bool {
	c.mu.Lock()
	p, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
		p.timer.Stop()
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	p.ch <- pendingResult{msg: msg}
	return true
}

// fail settles a single pending entry with the given error.
func (c *correlator) fail(id uint64, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		p.timer.Stop()
	}
	c.mu.Unlock()

	if ok {
		p.ch <- pendingResult{err: err}
	}
}

// failAll settles every outstanding entry with the given error and leaves
// the table empty. Used on session teardown.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.ch <- pendingResult{err: err}
	}
}

// discard removes a pending entry without settling it. Used when the send
// itself fails and the error is returned to the caller directly.
func (c *correlator) discard(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[id]; ok {
		delete(c.pending, id)
		p.timer.Stop()
	}
}
