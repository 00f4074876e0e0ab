package broadcast

import "sync"

// Hub fans out values to in-process subscribers. Slow subscribers miss
// values instead of blocking the publisher.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	next   int
	buffer int
	closed bool
}

// New creates a hub whose subscriber channels hold up to buffer values.
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = 8
	}
	return &Hub[T]{
		subs:   make(map[int]chan T),
		buffer: buffer,
	}
}

// Publish delivers value to every subscriber that has room for it.
func (h *Hub[T]) Publish(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- value:
		default:
		}
	}
}

// Subscribe returns a channel of published values and a cancel func.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan T, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close closes every subscriber channel. Later subscriptions receive a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Len reports the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
