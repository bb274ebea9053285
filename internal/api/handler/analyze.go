package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/finsight-ai/finsight/internal/analysis"
	"github.com/finsight-ai/finsight/internal/api/response"
	"github.com/finsight-ai/finsight/pkg/models"
)

// maxUploadBytes caps document uploads at 50 MiB.
const maxUploadBytes = 50 << 20

// Submitter defines the interface the analyze handler depends on.
type Submitter interface {
	Submit(ctx context.Context, params analysis.SubmitParams) (*models.Job, error)
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze.
// The request is a multipart form with a required "file" part and optional
// "query" and "email" fields. A successful submission returns 202 with the
// pending job; the caller polls GET /api/v1/analyze/{jobID} from there.
func NewAnalyzeHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				response.Error(w, http.StatusRequestEntityTooLarge,
					"FILE_TOO_LARGE", "Uploaded file exceeds the 50 MiB limit", nil)
				return
			}
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "Expected a multipart form upload", nil)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "file is required", nil)
			return
		}
		defer file.Close()

		job, err := svc.Submit(r.Context(), analysis.SubmitParams{
			Filename: header.Filename,
			Query:    r.FormValue("query"),
			Email:    r.FormValue("email"),
			Document: file,
		})
		if err != nil {
			if errors.Is(err, analysis.ErrInvalidDocument) {
				response.Error(w, http.StatusBadRequest,
					"INVALID_DOCUMENT", err.Error(), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Could not accept the document for analysis", nil)
			return
		}

		response.Accepted(w, submitResponse{
			JobID:     job.ID.String(),
			Status:    job.Status,
			Progress:  models.Progress(job.Status),
			Filename:  job.Filename,
			Query:     job.Query,
			CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Filename  string `json:"filename"`
	Query     string `json:"query"`
	CreatedAt string `json:"created_at"`
}
