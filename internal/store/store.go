package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a job status change is requested
// that the lifecycle state machine does not permit, including any attempt
// to transition a terminal job. Callers racing to start the same pending
// job observe it as "the other worker won".
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
//
// Every mutating operation commits before returning: a successful call is
// durably visible to the next Get issued by any caller, including one on a
// freshly opened connection in another process. There is no write buffer
// and no status cache in front of the database.
type Store interface {
	Ping(ctx context.Context) error

	GetOrCreateUser(ctx context.Context, email string) (*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	// CreateJob inserts a new pending job. Returns ErrDuplicateKey if the
	// id already exists; ids are generated at submission and never reused,
	// so a collision indicates a caller bug.
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)

	// StartJob transitions pending -> running with an atomic compare-and-set
	// on status. When two workers race on the same id, exactly one call
	// succeeds; the loser gets ErrInvalidTransition.
	StartJob(ctx context.Context, id uuid.UUID) error

	// CompleteJob transitions running -> completed and inserts the report
	// in a single transaction; the status flip is never visible without
	// its report.
	CompleteJob(ctx context.Context, id uuid.UUID, report *models.AnalysisReport) error

	// FailJob transitions pending|running -> failed with the given message.
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error

	GetReportByJobID(ctx context.Context, jobID uuid.UUID) (*models.AnalysisReport, error)
}
