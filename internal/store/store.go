package store

import (
	"context"
	"errors"

	"github.com/kontrategy/kontrategy-api/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrTerminalState = errors.New("job already in terminal state")

// Store is the data access interface for job state. Entries live in the shared
// key-value store and disappear when their TTL elapses.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id string, status string, opts ...JobUpdateOption) error
}

type jobUpdateParams struct {
	ErrorMessage *string
	Result       *models.AnalysisResult
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithResult(result *models.AnalysisResult) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Result = result
	}
}
