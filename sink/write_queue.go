package sink

import (
	"sync"
	"time"

	"logserver/domain"
	apperrors "logserver/errors"
	"logserver/observability"
)

// DefaultQueueCapacity bounds the database write queue.
const DefaultQueueCapacity = 1000

// WriteQueue is the bounded FIFO between the ingestion loop and the database
// worker. Producers never block: a full, aborted or disabled queue refuses
// the event and the caller drops it.
//
// The ring, the aborted flag and disabledUntil share one mutex, held only for
// O(1) bookkeeping and never across a write.
type WriteQueue struct {
	mu            sync.Mutex
	ring          []domain.Event
	head          int
	size          int
	aborted       bool
	disabledUntil time.Time

	wake       chan struct{}
	done       chan struct{}
	monitoring *observability.MonitoringManager
}

func NewWriteQueue(capacity int, monitoring *observability.MonitoringManager) *WriteQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	monitoring.SetQueueCapacity(capacity)
	return &WriteQueue{
		ring:       make([]domain.Event, capacity),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		monitoring: monitoring,
	}
}

// Enqueue appends e at the tail unless the queue is aborted, disabled at now,
// or full. Delivered means accepted for eventual persistence.
func (q *WriteQueue) Enqueue(e domain.Event, now time.Time) domain.Outcome {
	q.mu.Lock()
	var reason error
	switch {
	case q.aborted:
		reason = apperrors.ErrQueueAborted
	case now.Before(q.disabledUntil):
		reason = apperrors.ErrSinkDisabled
	case q.size >= len(q.ring):
		reason = apperrors.ErrQueueFull
	default:
		q.ring[(q.head+q.size)%len(q.ring)] = e
		q.size++
	}
	size := q.size
	q.mu.Unlock()

	if reason != nil {
		q.monitoring.IncrQueueRejected()
		return domain.Dropped(reason)
	}
	q.monitoring.SetQueueDepth(size)
	q.signal()
	return domain.Delivered()
}

// Pop removes the head of the queue.
func (q *WriteQueue) Pop() (domain.Event, bool) {
	q.mu.Lock()
	if q.size == 0 {
		q.mu.Unlock()
		return domain.Event{}, false
	}
	e := q.ring[q.head]
	q.ring[q.head] = domain.Event{}
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	size := q.size
	q.mu.Unlock()

	q.monitoring.SetQueueDepth(size)
	return e, true
}

func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *WriteQueue) Cap() int {
	return len(q.ring)
}

// Abort refuses every later Enqueue and wakes the worker. It is idempotent.
func (q *WriteQueue) Abort() {
	q.mu.Lock()
	if q.aborted {
		q.mu.Unlock()
		return
	}
	q.aborted = true
	close(q.done)
	q.mu.Unlock()
	q.signal()
}

func (q *WriteQueue) IsAborted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborted
}

// Done is closed by Abort.
func (q *WriteQueue) Done() <-chan struct{} {
	return q.done
}

// Wake receives a value whenever an event was accepted or the queue aborted.
func (q *WriteQueue) Wake() <-chan struct{} {
	return q.wake
}

// Disable refuses events until the given instant and discards everything
// already queued. It returns how many events were discarded.
func (q *WriteQueue) Disable(until time.Time) int {
	q.mu.Lock()
	q.disabledUntil = until
	n := q.clearLocked()
	q.mu.Unlock()

	q.monitoring.SetQueueDepth(0)
	q.monitoring.AddQueueDiscarded(n)
	return n
}

func (q *WriteQueue) DisabledUntil() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disabledUntil
}

// Discard empties the queue and returns how many events were dropped.
func (q *WriteQueue) Discard() int {
	q.mu.Lock()
	n := q.clearLocked()
	q.mu.Unlock()

	q.monitoring.SetQueueDepth(0)
	q.monitoring.AddQueueDiscarded(n)
	return n
}

func (q *WriteQueue) clearLocked() int {
	n := q.size
	for i := 0; i < n; i++ {
		q.ring[(q.head+i)%len(q.ring)] = domain.Event{}
	}
	q.head = 0
	q.size = 0
	return n
}

func (q *WriteQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
