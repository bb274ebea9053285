package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/finsight-ai/finsight/internal/queue"
)

// Pool runs a fixed number of goroutines that dequeue job ids and hand
// them to a shared Runner.
type Pool struct {
	queue       queue.Queue
	runner      *Runner
	concurrency int
	logger      *slog.Logger
}

func NewPool(q queue.Queue, r *Runner, concurrency int, logger *slog.Logger) *Pool {
	return &Pool{
		queue:       q,
		runner:      r,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled or the queue is closed, then waits
// for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.consume(ctx, n)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) consume(ctx context.Context, n int) {
	log := p.logger.With("worker", n)
	log.Info("worker started")

	for {
		jobID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("worker stopping")
				return
			}
			log.Error("dequeue failed", "error", err)
			continue
		}

		if err := p.runner.Process(ctx, jobID); err != nil {
			log.Error("job processing failed", "job_id", jobID, "error", err)
		}
	}
}
