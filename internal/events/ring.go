package events

import (
	"context"
	"sync"
)

// DefaultRingSize is the number of events retained when no size is given.
const DefaultRingSize = 500

// Ring is a bounded in-memory event log. The oldest events are overwritten
// once the buffer is full. Subscribers are notified with a snapshot after
// every change.
type Ring struct {
	mu    sync.RWMutex
	buf   []Event
	start int
	size  int

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]func([]Event)
}

// NewRing creates a ring buffer holding up to capacity events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Ring{
		buf:         make([]Event, capacity),
		subscribers: make(map[int]func([]Event)),
	}
}

// Emit appends ev to the buffer.
func (r *Ring) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ev
		r.size++
	} else {
		r.buf[r.start] = ev
		r.start = (r.start + 1) % len(r.buf)
	}
	r.mu.Unlock()

	r.notify()
}

// Entries returns the retained events, oldest first.
func (r *Ring) Entries() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of retained events.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Clear drops all retained events.
func (r *Ring) Clear() {
	r.mu.Lock()
	clear(r.buf)
	r.start = 0
	r.size = 0
	r.mu.Unlock()

	r.notify()
}

// Subscribe registers fn to receive snapshots. fn is called once immediately
// with the current entries. The returned function removes the subscription.
func (r *Ring) Subscribe(fn func([]Event)) func() {
	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.subMu.Unlock()

	safeCall(fn, r.Entries())

	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Ring) notify() {
	r.subMu.Lock()
	if len(r.subscribers) == 0 {
		r.subMu.Unlock()
		return
	}
	subs := make([]func([]Event), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	snapshot := r.Entries()
	for _, fn := range subs {
		safeCall(fn, snapshot)
	}
}

func safeCall(fn func([]Event), entries []Event) {
	defer func() {
		_ = recover() //nolint:errcheck // subscriber failures are ignored
	}()
	fn(entries)
}
