package ingest

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrQueueCompleted = errors.New("queue completed")

// Queue is a bounded FIFO handing items from producers to consumers.
// Push blocks while the queue is full, Pop blocks while it is empty, and
// Complete marks the end of input: consumers drain what is left and then stop.
type Queue[T any] struct {
	items chan T
	done  chan struct{}

	once sync.Once
	mu   sync.RWMutex
}

func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue capacity must be positive")
	}
	return &Queue[T]{
		items: make(chan T, capacity),
		done:  make(chan struct{}),
	}
}

// Push returns ctx.Err() if ctx ends before space frees up; the item is not inserted then.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.done:
		return ErrQueueCompleted
	default:
	}

	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrQueueCompleted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop returns ok == false once the queue is completed and empty.
func (q *Queue[T]) Pop(ctx context.Context) (item T, ok bool, err error) {
	select {
	case item, ok = <-q.items:
		return item, ok, nil
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// Complete is idempotent. Blocked pushers are released with ErrQueueCompleted.
func (q *Queue[T]) Complete() {
	q.once.Do(func() {
		close(q.done)

		q.mu.Lock()
		defer q.mu.Unlock()
		close(q.items)
	})
}

// Drain removes whatever is still buffered without blocking.
func (q *Queue[T]) Drain() []T {
	var rest []T
	for {
		select {
		case item, ok := <-q.items:
			if !ok {
				return rest
			}
			rest = append(rest, item)
		default:
			return rest
		}
	}
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) Cap() int {
	return cap(q.items)
}
