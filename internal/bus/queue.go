package bus

import (
	"sync/atomic"

	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/pkg/exception"
)

// Event is one inbound message multiplexed onto the strategy loop:
// exactly one of the pointers is set.
type Event struct {
	Tick   *schema.QuoteTick
	Exec   *schema.ExecutionReport
	Reject *schema.CancelReject
}

// Queue is a bounded, non-blocking event queue. Feed goroutines
// publish into it; the strategy loop is its single consumer, which is
// what lets the core stay lock-free.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking. A full queue is the
// caller's signal to drop and count rather than stall a feed.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrStrategyQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrStrategyQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Chan exposes the receive side for select-based consumption.
func (q *Queue) Chan() <-chan Event {
	return q.ch
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}
