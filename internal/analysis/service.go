// Package analysis is the submission façade: it accepts uploaded
// documents, persists them, creates the pending job record, and hands
// the job id to the work-dispatch queue. Status and result reads go
// through here as well so the HTTP layer stays thin.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/queue"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/pkg/models"
)

// DefaultQuery is used when a submission carries no analysis question.
const DefaultQuery = "Analyze this financial document comprehensively"

// ErrInvalidDocument is returned by Submit for uploads that are not
// acceptable before any job is created: wrong extension, empty file,
// missing filename.
var ErrInvalidDocument = errors.New("invalid document")

// ErrStillProcessing is returned by Fetch while the job has not reached
// a terminal state.
var ErrStillProcessing = errors.New("job still processing")

// SubmitParams carries one document submission.
type SubmitParams struct {
	Filename string
	Query    string
	Email    string
	Document io.Reader
}

// FetchResult is the terminal outcome of a job. Report is nil when the
// job failed; ErrorMessage on the job says why.
type FetchResult struct {
	Job    *models.Job
	Report *models.AnalysisReport
}

// Service orchestrates the submit/poll/fetch lifecycle operations.
type Service struct {
	store       store.Store
	queue       queue.Queue
	documentDir string
	logger      *slog.Logger
}

func NewService(st store.Store, q queue.Queue, documentDir string, logger *slog.Logger) *Service {
	return &Service{
		store:       st,
		queue:       q,
		documentDir: documentDir,
		logger:      logger,
	}
}

// Submit validates the upload, stores the document, creates a pending
// job, and enqueues it. The returned job is already durable: a status
// poll for its id succeeds even if this process dies right after.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Job, error) {
	if params.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidDocument)
	}
	if !strings.EqualFold(filepath.Ext(params.Filename), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are supported", ErrInvalidDocument)
	}

	query := strings.TrimSpace(params.Query)
	if query == "" {
		query = DefaultQuery
	}

	jobID := uuid.New()

	path, size, err := s.saveDocument(jobID, params.Document)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidDocument)
	}

	var userID *uuid.UUID
	if email := strings.TrimSpace(params.Email); email != "" {
		user, err := s.store.GetOrCreateUser(ctx, email)
		if err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("resolving user: %w", err)
		}
		userID = &user.ID
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        jobID,
		UserID:    userID,
		Filename:  filepath.Base(params.Filename),
		FilePath:  path,
		Query:     query,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("creating job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		// The job exists but will never be picked up; record that rather
		// than leave it pending forever, and drop the orphaned document.
		s.logger.Error("enqueue failed, marking job failed", "job_id", job.ID, "error", err)
		if failErr := s.store.FailJob(ctx, job.ID, "could not schedule job for execution"); failErr != nil {
			s.logger.Error("could not mark unscheduled job failed", "job_id", job.ID, "error", failErr)
		}
		_ = os.Remove(path)
		return nil, fmt.Errorf("scheduling job: %w", err)
	}

	s.logger.Info("job submitted", "job_id", job.ID, "filename", job.Filename, "size_bytes", size)
	return job, nil
}

// Poll returns the current job record. It always reads the database, so
// a successful submission or a worker transition is immediately visible.
func (s *Service) Poll(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Fetch returns the terminal outcome of a job: the completed report, or
// the failed job record with its error message. Non-terminal jobs yield
// ErrStillProcessing.
func (s *Service) Fetch(ctx context.Context, jobID uuid.UUID) (*FetchResult, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !job.Terminal() {
		return nil, ErrStillProcessing
	}

	result := &FetchResult{Job: job}
	if job.Status == models.JobStatusCompleted {
		report, err := s.store.GetReportByJobID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("loading report: %w", err)
		}
		result.Report = report
	}
	return result, nil
}

// saveDocument streams the upload to <documentDir>/financial_document_<id>.pdf.
func (s *Service) saveDocument(jobID uuid.UUID, r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.documentDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating document dir: %w", err)
	}

	path := filepath.Join(s.documentDir, fmt.Sprintf("financial_document_%s.pdf", jobID))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating document file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("writing document: %w", err)
	}
	return path, size, nil
}
