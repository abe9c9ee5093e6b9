package notify

import (
	"errors"
	"time"

	"pricewatch/internal/metrics"
)

// DefaultQueueCapacity bounds the pending backlog when no capacity is
// configured.
const DefaultQueueCapacity = 10000

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("notify: queue full")

// Queue is a bounded FIFO of pending notifications. Enqueue never blocks;
// DequeueOne waits at most the given duration so consumers can observe
// shutdown between polls.
type Queue struct {
	entries chan *Notification
}

// NewQueue constructs a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{entries: make(chan *Notification, capacity)}
}

// Enqueue appends a pending notification, failing with ErrQueueFull at
// capacity.
func (q *Queue) Enqueue(note *Notification) error {
	select {
	case q.entries <- note:
		metrics.NotificationsEnqueuedTotal.Inc()
		metrics.QueueDepth.Set(float64(len(q.entries)))
		return nil
	default:
		metrics.NotificationsDroppedTotal.Inc()
		return ErrQueueFull
	}
}

// DequeueOne pops the oldest entry, waiting up to wait when the queue is
// empty. A non-positive wait polls without blocking.
func (q *Queue) DequeueOne(wait time.Duration) (*Notification, bool) {
	if wait <= 0 {
		select {
		case note := <-q.entries:
			metrics.QueueDepth.Set(float64(len(q.entries)))
			return note, true
		default:
			return nil, false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case note := <-q.entries:
		metrics.QueueDepth.Set(float64(len(q.entries)))
		return note, true
	case <-timer.C:
		return nil, false
	}
}

// Len reports the number of waiting notifications.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Cap reports the configured capacity.
func (q *Queue) Cap() int {
	return cap(q.entries)
}
