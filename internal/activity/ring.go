package activity

import "sync"

// RingBuffer is a thread-safe fixed-capacity buffer that keeps the most
// recent items in insertion order. Pushing into a full buffer overwrites
// the oldest item.
type RingBuffer[T any] struct {
	data  []T
	start int
	count int
	mu    sync.RWMutex
}

// NewRingBuffer creates a ring buffer holding at most capacity items.
// A capacity below 1 is treated as 1.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push appends v, evicting the oldest item when the buffer is full.
// It reports whether an item was evicted.
func (r *RingBuffer[T]) Push(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.data)
	if r.count < size {
		r.data[(r.start+r.count)%size] = v
		r.count++
		return false
	}
	r.data[r.start] = v
	r.start = (r.start + 1) % size
	return true
}

// Items returns the buffered items, oldest first.
func (r *RingBuffer[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(r.start+i)%len(r.data)]
	}
	return out
}

// Latest returns up to n of the most recent items, oldest first.
func (r *RingBuffer[T]) Latest(n int) []T {
	items := r.Items()
	if n < len(items) {
		items = items[len(items)-n:]
	}
	return items
}

// Len returns the number of buffered items.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the buffer's capacity.
func (r *RingBuffer[T]) Cap() int {
	return len(r.data)
}

// Reset removes every item.
func (r *RingBuffer[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.start = 0
	r.count = 0
}
