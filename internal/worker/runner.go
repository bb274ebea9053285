// Package worker executes queued analysis jobs: it claims a pending job,
// extracts the document text, runs the configured analyzer, and records
// the outcome. Delivery from the queue is at-least-once, so everything
// here is idempotent against redelivery.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/ai"
	"github.com/finsight-ai/finsight/internal/extract"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/pkg/models"
)

// Runner processes one job at a time. It is safe for concurrent use; the
// pool shares a single Runner across its goroutines.
type Runner struct {
	store            store.Store
	extractor        extract.Extractor
	analyzer         models.Analyzer
	inferenceTimeout time.Duration
	logger           *slog.Logger
}

func NewRunner(st store.Store, ex extract.Extractor, an models.Analyzer, inferenceTimeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		store:            st,
		extractor:        ex,
		analyzer:         an,
		inferenceTimeout: inferenceTimeout,
		logger:           logger,
	}
}

// Process runs the full lifecycle for one delivered job id.
//
// A nil return means the delivery is settled: either the job ran to a
// terminal state, or it was a duplicate/stale delivery that needed no
// work. A non-nil return means the job's state was NOT settled here and
// redelivery is appropriate.
func (r *Runner) Process(ctx context.Context, jobID uuid.UUID) (err error) {
	log := r.logger.With("job_id", jobID, "provider", r.analyzer.Name())

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing job", "panic", rec)
			r.fail(jobID, "internal error during analysis", log)
			err = fmt.Errorf("panic processing job %s: %v", jobID, rec)
		}
	}()

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("dequeued unknown job id, discarding")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	// Redelivered message for a job already claimed or finished.
	if job.Status != models.JobStatusPending {
		log.Info("job not pending, skipping", "status", job.Status)
		return nil
	}

	if err := r.store.StartJob(ctx, jobID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Another worker won the claim between our read and the CAS.
			log.Info("lost start race, skipping")
			return nil
		}
		return fmt.Errorf("start job: %w", err)
	}

	log.Info("job started", "filename", job.Filename)

	text, err := r.extractor.Extract(job.FilePath)
	if err != nil {
		log.Warn("document extraction failed", "error", err)
		r.fail(jobID, failureMessage(err), log)
		return nil
	}

	inferCtx, cancel := context.WithTimeout(ctx, r.inferenceTimeout)
	defer cancel()

	started := time.Now()
	report, err := r.analyzer.Analyze(inferCtx, models.AnalysisRequest{
		DocumentText: text,
		Query:        job.Query,
	})
	if err != nil {
		log.Warn("analysis failed", "error", err, "elapsed", time.Since(started))
		r.fail(jobID, failureMessage(err), log)
		return nil
	}

	report.JobID = job.ID
	if err := r.store.CompleteJob(ctx, jobID, &report); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	log.Info("job completed",
		"recommendation", report.Recommendation,
		"confidence", report.ConfidenceScore,
		"elapsed", time.Since(started))
	return nil
}

// fail marks the job failed on a best-effort basis. The recording error
// is logged, not propagated: the analysis error is already the outcome.
func (r *Runner) fail(jobID uuid.UUID, msg string, log *slog.Logger) {
	// Fresh context: the processing ctx may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.store.FailJob(ctx, jobID, msg); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		log.Error("could not record job failure", "error", err)
	}
}

// failureMessage maps pipeline errors to the operator-facing message
// stored on the job record.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnreadableDocument):
		return fmt.Sprintf("document could not be read: %v", err)
	case errors.Is(err, ai.ErrInferenceTimeout):
		return "analysis timed out"
	case errors.Is(err, ai.ErrProviderUnavailable):
		return "AI provider unavailable"
	case errors.Is(err, ai.ErrInvalidResponse):
		return "AI provider returned an unusable response"
	default:
		return fmt.Sprintf("analysis failed: %v", err)
	}
}
