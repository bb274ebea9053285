package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/api/response"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/pkg/models"
)

// Poller defines the interface the status handler depends on.
type Poller interface {
	Poll(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /api/v1/analyze/{jobID}.
func NewJobStatusHandler(svc Poller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		job, err := svc.Poll(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound,
					"JOB_NOT_FOUND", "No job exists with the given id", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not load job status", nil)
			return
		}

		response.JSON(w, statusResponse{
			JobID:        job.ID.String(),
			Status:       job.Status,
			Progress:     models.Progress(job.Status),
			Filename:     job.Filename,
			Query:        job.Query,
			ErrorMessage: job.ErrorMessage,
			CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
			StartedAt:    formatTimePtr(job.StartedAt),
			CompletedAt:  formatTimePtr(job.CompletedAt),
		})
	}
}

type statusResponse struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	Filename     string  `json:"filename"`
	Query        string  `json:"query"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	StartedAt    *string `json:"started_at,omitempty"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
