package client

import (
	"sync"
	"time"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
)

// pendingCall is the correlation entry for one in-flight request. The
// result channel has capacity one and is written at most once: whoever
// removes the entry from the table owns its resolution.
type pendingCall struct {
	id       string
	sentAt   time.Time
	deadline time.Time
	result   chan protocol.Envelope
}

// pendingTable tracks in-flight requests by correlation id. Insert, resolve
// and expire all pass through the mutex, so a call is fulfilled at most
// once and a late response after expiry matches nothing.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]*pendingCall)}
}

func (t *pendingTable) insert(id string, deadline time.Time) *pendingCall {
	call := &pendingCall{
		id:       id,
		sentAt:   time.Now(),
		deadline: deadline,
		result:   make(chan protocol.Envelope, 1),
	}

	t.mu.Lock()
	t.calls[id] = call
	t.mu.Unlock()

	return call
}

// take removes and returns the entry for id, or nil if it was never
// inserted or has already been taken.
func (t *pendingTable) take(id string) *pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	call, exists := t.calls[id]
	if !exists {
		return nil
	}
	delete(t.calls, id)
	return call
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
