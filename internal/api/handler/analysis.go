package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	mw "github.com/kontrategy/kontrategy-api/internal/api/middleware"
	"github.com/kontrategy/kontrategy-api/internal/api/response"
	"github.com/kontrategy/kontrategy-api/internal/jobs"
	"github.com/kontrategy/kontrategy-api/internal/store"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

const (
	maxUsernameLength = 200
	maxRequestBody    = 4 << 10
)

// Submitter accepts analysis jobs. *jobs.Executor satisfies it.
type Submitter interface {
	Submit(ctx context.Context, identity, clientID string) (string, error)
}

// JobReader reads stored jobs. store.Store satisfies it.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

type startRequest struct {
	Username string `json:"username"`
}

type startResponse struct {
	JobID string `json:"job_id"`
}

// NewStartAnalysisHandler returns an http.HandlerFunc for POST /analysis/start.
func NewStartAnalysisHandler(sub Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		username := strings.TrimSpace(req.Username)
		if username == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "username is required", nil)
			return
		}
		if utf8.RuneCountInString(username) > maxUsernameLength {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"username must be at most 200 characters", nil)
			return
		}

		jobID, err := sub.Submit(r.Context(), username, mw.ClientID(r))
		if err != nil {
			var limited *jobs.RateLimitedError
			switch {
			case errors.As(err, &limited):
				response.RateLimited(w, limited.Limit, limited.RetryAfter)
			case errors.Is(err, jobs.ErrQueueFull):
				response.Error(w, http.StatusServiceUnavailable, "QUEUE_FULL",
					"Too many analyses in progress, try again shortly", nil)
			case errors.Is(err, jobs.ErrShuttingDown):
				response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
					"Service is shutting down", nil)
			default:
				slog.Error("failed to submit analysis", "error", err, "username", username)
				response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
					"Job store unavailable", nil)
			}
			return
		}

		response.Accepted(w, startResponse{JobID: jobID})
	}
}

// NewJobStatusHandler returns an http.HandlerFunc for GET /analysis/status/{job_id}.
// The stored job is returned as is.
func NewJobStatusHandler(jr JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")
		if jobID == "" {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job expired or not found", nil)
			return
		}

		job, err := jr.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job expired or not found", nil)
				return
			}
			slog.Error("failed to read job", "error", err, "job_id", jobID)
			response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Job store unavailable", nil)
			return
		}

		response.JSON(w, job)
	}
}
