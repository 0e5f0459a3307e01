// Package queue provides a blocking producer/consumer queue used to hand
// work from the capture loop to a background worker.
package queue

import "sync"

// Queue is a FIFO guarded by a mutex and condition variable. Push never
// blocks; Pop blocks until an item is available or the queue is closed.
//
// A Queue created with a positive capacity keeps at most that many items.
// Pushing onto a full queue evicts the oldest item through the evict hook.
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	capacity int
	closed   bool
	onEvict  func(T)
}

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithEvict sets the hook called (outside the lock) for every item dropped
// because the queue was full.
func WithEvict[T any](fn func(T)) Option[T] {
	return func(q *Queue[T]) {
		q.onEvict = fn
	}
}

// New creates a queue. A capacity of zero or less means unbounded.
func New[T any](capacity int, opts ...Option[T]) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	q := &Queue[T]{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push enqueues item and wakes one waiting consumer. It returns false if
// the queue is closed, in which case the caller keeps ownership of item.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	var evicted []T
	if q.capacity > 0 {
		for len(q.items) >= q.capacity {
			evicted = append(evicted, q.items[0])
			q.items = q.items[1:]
		}
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	q.mu.Unlock()

	if q.onEvict != nil {
		for _, e := range evicted {
			q.onEvict(e)
		}
	}
	return true
}

// Pop returns the next item. It blocks while the queue is open and empty and
// reports false only once the queue is both closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.items) == 0 {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// TryPop returns the next item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Close marks the queue closed and wakes every waiter. Items still queued
// remain poppable. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Drain removes and returns all queued items.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
