package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/analysis"
	"github.com/finsight-ai/finsight/internal/api/response"
	"github.com/finsight-ai/finsight/internal/store"
	"github.com/finsight-ai/finsight/pkg/models"
)

// Fetcher defines the interface the result handler depends on.
type Fetcher interface {
	Fetch(ctx context.Context, jobID uuid.UUID) (*analysis.FetchResult, error)
}

// NewJobResultHandler returns an http.HandlerFunc for
// GET /api/v1/analyze/{jobID}/result.
//
// Terminal jobs return 200 with the full record: completed jobs carry the
// report, failed jobs carry the error message and no report. Non-terminal
// jobs return 409 so clients can tell "keep polling" apart from a bad id.
func NewJobResultHandler(svc Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		result, err := svc.Fetch(r.Context(), jobID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound,
					"JOB_NOT_FOUND", "No job exists with the given id", nil)
			case errors.Is(err, analysis.ErrStillProcessing):
				response.Error(w, http.StatusConflict,
					"JOB_STILL_PROCESSING", "The job has not finished; poll its status endpoint", nil)
			default:
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Could not load the job result", nil)
			}
			return
		}

		job := result.Job
		resp := resultResponse{
			JobID:        job.ID.String(),
			Status:       job.Status,
			Filename:     job.Filename,
			Query:        job.Query,
			ErrorMessage: job.ErrorMessage,
			CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
			CompletedAt:  formatTimePtr(job.CompletedAt),
		}
		if result.Report != nil {
			resp.Report = reportBody(result.Report)
		}

		response.JSON(w, resp)
	}
}

type resultResponse struct {
	JobID        string         `json:"job_id"`
	Status       string         `json:"status"`
	Filename     string         `json:"filename"`
	Query        string         `json:"query"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Report       map[string]any `json:"report,omitempty"`
	CreatedAt    string         `json:"created_at"`
	CompletedAt  *string        `json:"completed_at,omitempty"`
}

func reportBody(r *models.AnalysisReport) map[string]any {
	return map[string]any{
		"provider":               r.Provider,
		"model":                  r.Model,
		"revenue_analysis":       r.RevenueAnalysis,
		"profitability_analysis": r.ProfitabilityAnalysis,
		"cash_flow_analysis":     r.CashFlowAnalysis,
		"risk_assessment":        r.RiskAssessment,
		"recommendation":         r.Recommendation,
		"confidence_score":       r.ConfidenceScore,
		"cited_sources":          r.CitedSources,
		"reasoning":              r.Reasoning,
	}
}
