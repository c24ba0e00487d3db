package events

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO of pending deliveries. Handlers may publish
// while being delivered, so pushes must never block on the consumer.
type queue struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{} // buffered, size 1
}

func newQueue() *queue {
	return &queue{
		items:  make([]delivery, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// push appends ds as one contiguous batch. It returns false once closed.
func (q *queue) push(ds ...delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, ds...)
	q.notify()
	return true
}

// pop returns the oldest delivery, blocking until one is available. It
// returns false when ctx is done or the queue is closed and empty.
func (q *queue) pop(ctx context.Context) (delivery, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			d := q.items[0]
			q.items[0] = delivery{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return d, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return delivery{}, false
		}

		select {
		case <-q.signal:
		case <-ctx.Done():
			return delivery{}, false
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notify()
}

func (q *queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
