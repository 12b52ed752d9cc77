// Package dispatch owns the bounded queue between ingestion and delivery
// and the single worker that drains it in order.
package dispatch

import (
	"context"
	"sync"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/notification"
)

// DefaultCapacity is the queue size used when none is configured.
const DefaultCapacity = 1024

// Queue is a bounded FIFO of notifications awaiting dispatch.
type Queue struct {
	items     chan *notification.Notification
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding up to capacity notifications.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items: make(chan *notification.Notification, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue appends n, blocking while the queue is full. If ctx ends first it
// returns an EvaluationError wrapping ErrQueueTimeout; after Close it
// returns ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, n *notification.Notification) error {
	select {
	case <-q.done:
		return alerterr.ErrQueueClosed
	default:
	}

	select {
	case q.items <- n:
		return nil
	case <-q.done:
		return alerterr.ErrQueueClosed
	case <-ctx.Done():
		return &alerterr.EvaluationError{RuleID: n.RuleID, Err: alerterr.ErrQueueTimeout}
	}
}

// Close stops accepting new notifications. Queued items remain available
// to the worker. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Items exposes the receive side of the queue.
func (q *Queue) Items() <-chan *notification.Notification {
	return q.items
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}
