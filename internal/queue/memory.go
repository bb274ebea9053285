package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const defaultMemoryQueueDepth = 256

// MemoryQueue is the embedded in-process queue driver. Submissions and
// workers must run in the same process; used in development and tests.
type MemoryQueue struct {
	ch   chan uuid.UUID
	done chan struct{}

	closeOnce sync.Once
}

// NewMemoryQueue creates a MemoryQueue with the given buffer depth.
// A depth <= 0 uses the default.
func NewMemoryQueue(depth int) *MemoryQueue {
	if depth <= 0 {
		depth = defaultMemoryQueueDepth
	}
	return &MemoryQueue{
		ch:   make(chan uuid.UUID, depth),
		done: make(chan struct{}),
	}
}

// Enqueue schedules a job id. Returns ErrClosed once Close has been
// called, including when the call was already blocked on a full buffer.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- jobID:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	// Buffered ids are delivered even after Close.
	select {
	case id := <-q.ch:
		return id, nil
	default:
	}

	select {
	case id := <-q.ch:
		return id, nil
	case <-q.done:
		// A send that won its race against Close may still be buffered.
		select {
		case id := <-q.ch:
			return id, nil
		default:
			return uuid.Nil, ErrClosed
		}
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Close stops the queue. The id channel itself is never closed so a
// producer mid-send cannot panic; pending and future Enqueues observe
// done and return ErrClosed, and Dequeue drains what is already buffered
// before reporting ErrClosed.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
