package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kontrategy/kontrategy-api/internal/cache"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

// DefaultJobTTL is how long a job entry stays readable after its last write.
const DefaultJobTTL = time.Hour

// RedisStore implements Store on top of the shared cache. Each write resets the
// entry TTL to the full window.
type RedisStore struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore creates a RedisStore. A non-positive ttl selects DefaultJobTTL.
func NewRedisStore(c cache.Cache, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &RedisStore{
		cache: c,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks store connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// --- Jobs ---

func (s *RedisStore) CreateJob(ctx context.Context, job *models.Job) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	ok, err := s.cache.SetNX(ctx, cache.JobKey(job.ID), data, s.ttl)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if !ok {
		return ErrDuplicateKey
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	data, found, err := s.cache.Get(ctx, cache.JobKey(id))
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}

	var j models.Job
	if err := sonic.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &j, nil
}

var validTransitions = map[string][]string{
	models.JobStatusProcessing: {models.JobStatusProcessing, models.JobStatusDone, models.JobStatusError},
}

func (s *RedisStore) UpdateJobStatus(ctx context.Context, id string, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	err := s.cache.Update(ctx, cache.JobKey(id), s.ttl, func(current []byte) ([]byte, error) {
		var j models.Job
		if err := sonic.Unmarshal(current, &j); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}

		if j.IsTerminal() {
			return nil, ErrTerminalState
		}
		if !slices.Contains(validTransitions[j.Status], status) {
			return nil, fmt.Errorf("invalid job status transition: %s -> %s", j.Status, status)
		}

		now := s.now()
		j.Status = status
		j.UpdatedAt = now
		j.ExpiresAt = now.Add(s.ttl)
		if params.Result != nil {
			j.Result = params.Result
		}
		if params.ErrorMessage != nil {
			j.Error = *params.ErrorMessage
		}

		return json.Marshal(&j)
	})
	if errors.Is(err, cache.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		if errors.Is(err, ErrTerminalState) {
			return err
		}
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
