package router

import "sync"

// Handoff is an unbounded FIFO that lets a handler pass work to a worker
// goroutine without blocking the read path. Its ring grows when it is 70%
// full, so Push never waits.
type Handoff[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	count  int
	closed bool

	pushed int64
	popped int64
	grown  int
}

// HandoffStats describes a Handoff queue.
type HandoffStats struct {
	Pending  int
	Capacity int
	Pushed   int64
	Popped   int64
	Grown    int
}

// NewHandoff creates a queue with the given initial capacity.
func NewHandoff[T any](capacity int) *Handoff[T] {
	if capacity < 2 {
		capacity = 2
	}
	h := &Handoff[T]{ring: make([]T, capacity)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Push enqueues item. It returns false once the queue is closed.
func (h *Handoff[T]) Push(item T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if (h.count+1)*10 >= len(h.ring)*7 {
		h.grow()
	}

	h.ring[(h.head+h.count)%len(h.ring)] = item
	h.count++
	h.pushed++
	h.cond.Signal()
	return true
}

// Pop blocks until an item is available. It returns false when the queue is
// closed and drained.
func (h *Handoff[T]) Pop() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.count == 0 && !h.closed {
		h.cond.Wait()
	}
	return h.take()
}

// TryPop returns the next item without blocking.
func (h *Handoff[T]) TryPop() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.take()
}

// Drain calls fn for every item until the queue is closed and empty.
func (h *Handoff[T]) Drain(fn func(T)) {
	for {
		item, ok := h.Pop()
		if !ok {
			return
		}
		fn(item)
	}
}

// Close stops accepting items and wakes blocked consumers. Items already
// queued are still delivered.
func (h *Handoff[T]) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cond.Broadcast()
}

// Len returns the number of queued items.
func (h *Handoff[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Stats returns queue statistics.
func (h *Handoff[T]) Stats() HandoffStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HandoffStats{
		Pending:  h.count,
		Capacity: len(h.ring),
		Pushed:   h.pushed,
		Popped:   h.popped,
		Grown:    h.grown,
	}
}

// take pops the head item. Must be called with lock held.
func (h *Handoff[T]) take() (T, bool) {
	var zero T
	if h.count == 0 {
		return zero, false
	}
	item := h.ring[h.head]
	h.ring[h.head] = zero
	h.head = (h.head + 1) % len(h.ring)
	h.count--
	h.popped++
	return item, true
}

// grow doubles the ring, unwrapping it to start at index 0. Must be called
// with lock held.
func (h *Handoff[T]) grow() {
	next := make([]T, len(h.ring)*2)
	for i := 0; i < h.count; i++ {
		next[i] = h.ring[(h.head+i)%len(h.ring)]
	}
	h.ring = next
	h.head = 0
	h.grown++
}
