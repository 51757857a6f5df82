// Package buffer provides the bounded buffers used between acquisition
// and decoding: a generic ring buffer for queued items and a sliding
// sample window for overlapped signal analysis.
package buffer

import (
	"sync"
)

// OverflowPolicy defines what happens when a full ring receives a write.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room. This is the
	// default for live signal paths where stale samples are worthless.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item when the ring is full.
	DropNewest
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// Stats tracks ring activity since creation or the last Clear.
type Stats struct {
	Writes  uint64
	Reads   uint64
	Dropped uint64
}

// Ring is a fixed-capacity thread-safe circular buffer.
type Ring[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	size   int
	policy OverflowPolicy
	stats  Stats
}

// NewRing creates a ring holding up to capacity items. Capacity below 1
// is raised to 1.
func NewRing[T any](capacity int, policy OverflowPolicy) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items:  make([]T, capacity),
		policy: policy,
	}
}

// Write adds an item, applying the overflow policy when full. It reports
// whether the item was stored.
func (r *Ring[T]) Write(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Writes++

	if r.size == len(r.items) {
		if r.policy == DropNewest {
			r.stats.Dropped++
			return false
		}
		// DropOldest: overwrite the slot at head and advance.
		r.items[r.head] = item
		r.head = (r.head + 1) % len(r.items)
		r.stats.Dropped++
		return true
	}

	r.items[(r.head+r.size)%len(r.items)] = item
	r.size++
	return true
}

// Read removes and returns the oldest item.
func (r *Ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.size--
	r.stats.Reads++
	return item, true
}

// ReadBatch removes and returns up to max items in FIFO order.
func (r *Ring[T]) ReadBatch(max int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if max <= 0 || r.size == 0 {
		return nil
	}

	n := max
	if n > r.size {
		n = r.size
	}

	var zero T
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.items[r.head]
		r.items[r.head] = zero
		r.head = (r.head + 1) % len(r.items)
	}
	r.size -= n
	r.stats.Reads += uint64(n)
	return out
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Clear empties the ring and resets statistics.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
	r.stats = Stats{}
}

// Stats returns a snapshot of the ring counters.
func (r *Ring[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
