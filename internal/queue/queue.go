// Package queue provides the work-dispatch mechanism that hands submitted
// job ids to worker execution contexts. Two implementations exist: an
// embedded in-memory queue for single-process development, and a Redis
// list for multi-worker deployments. Business logic depends only on the
// Queue interface; the driver is chosen by configuration.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrClosed is returned by Enqueue and Dequeue after the queue has been
// shut down.
var ErrClosed = errors.New("queue closed")

// Queue dispatches job ids from the submission façade to workers.
//
// Delivery is at-least-once: a crashed worker may cause the same id to be
// delivered again, so consumers must be idempotent. The queue carries only
// ids — all job state lives in the record store.
type Queue interface {
	// Enqueue schedules a job for execution and returns without waiting
	// for it to run.
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	// Dequeue blocks until a job id is available, ctx is cancelled, or the
	// queue is closed.
	Dequeue(ctx context.Context) (uuid.UUID, error)
	Close() error
}
