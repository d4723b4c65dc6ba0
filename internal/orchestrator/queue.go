package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// jobQueue is an unbounded FIFO of job ids. Push never blocks, so submission
// is decoupled from execution; Pop blocks until an id is available or the
// context is cancelled.
type jobQueue struct {
	mu    sync.Mutex
	items []uuid.UUID
	wake  chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{wake: make(chan struct{}, 1)}
}

func (q *jobQueue) Push(id uuid.UUID) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *jobQueue) Pop(ctx context.Context) (uuid.UUID, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
