// Package jobs runs profile analyses in the background. Submit admits a
// request, records a processing job and hands it to a bounded worker pool;
// every accepted job ends with exactly one terminal write to the store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kontrategy/kontrategy-api/internal/analysis"
	"github.com/kontrategy/kontrategy-api/internal/metrics"
	"github.com/kontrategy/kontrategy-api/internal/ratelimit"
	"github.com/kontrategy/kontrategy-api/internal/store"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrQueueFull    = errors.New("job queue full")
	ErrShuttingDown = errors.New("executor shutting down")
)

// MsgShuttingDown is stored on jobs that were accepted but could not run
// before the process stopped.
const MsgShuttingDown = "Service shutting down"

const (
	DefaultWorkers    = 8
	DefaultQueueDepth = 32
	DefaultTimeout    = 8 * time.Minute

	terminalWriteTimeout = 10 * time.Second
)

// RateLimitedError is returned by Submit when the client is over its limit.
type RateLimitedError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit of %d exceeded, retry after %s", e.Limit, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Runner executes one analysis. *analysis.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, identity string) (*models.AnalysisResult, error)
}

// Admitter decides whether a client may submit. *ratelimit.Limiter satisfies it.
type Admitter interface {
	Admit(ctx context.Context, clientID string) (ratelimit.Decision, error)
}

// Config sizes the worker pool.
type Config struct {
	Workers    int
	QueueDepth int
	Timeout    time.Duration
}

type task struct {
	id       string
	identity string
	accepted time.Time
}

// Executor dispatches analyses to a fixed set of workers.
type Executor struct {
	store   store.Store
	limiter Admitter
	runner  Runner
	cfg     Config
	newID   func() string

	queue chan task
	slots chan struct{}

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	wg        sync.WaitGroup
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewExecutor creates an Executor. Zero config values select the defaults.
// Workers do not run until Start is called.
func NewExecutor(st store.Store, limiter Admitter, runner Runner, cfg Config) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	capacity := cfg.Workers + cfg.QueueDepth

	runCtx, cancel := context.WithCancel(context.Background())
	return &Executor{
		store:     st,
		limiter:   limiter,
		runner:    runner,
		cfg:       cfg,
		newID:     uuid.NewString,
		queue:     make(chan task, capacity),
		slots:     make(chan struct{}, capacity),
		runCtx:    runCtx,
		cancelRun: cancel,
	}
}

// Submit admits clientID, records a processing job for identity and queues it.
// It returns as soon as the job is recorded; the analysis runs later on a worker.
func (e *Executor) Submit(ctx context.Context, identity, clientID string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		metrics.ObserveSubmit(metrics.OutcomeShuttingDown)
		return "", ErrShuttingDown
	}

	decision, err := e.limiter.Admit(ctx, clientID)
	if err != nil {
		slog.Warn("rate limiter unavailable, admitting request", "client_id", clientID, "error", err)
	}
	if !decision.Allowed {
		metrics.ObserveSubmit(metrics.OutcomeRateLimited)
		return "", &RateLimitedError{Limit: decision.Limit, RetryAfter: decision.RetryAfter}
	}

	select {
	case e.slots <- struct{}{}:
	default:
		metrics.ObserveSubmit(metrics.OutcomeQueueFull)
		slog.Warn("job queue full, rejecting submission", "client_id", clientID)
		return "", ErrQueueFull
	}

	job := &models.Job{
		ID:       e.newID(),
		Status:   models.JobStatusProcessing,
		Username: strings.TrimSpace(identity),
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		<-e.slots
		metrics.ObserveSubmit(metrics.OutcomeStoreError)
		return "", fmt.Errorf("creating job: %w", err)
	}

	// A reserved slot guarantees room in the queue.
	e.queue <- task{id: job.ID, identity: identity, accepted: time.Now()}

	metrics.ObserveSubmit(metrics.OutcomeAccepted)
	slog.Info("job accepted", "job_id", job.ID, "username", job.Username, "client_id", clientID)
	return job.ID, nil
}

// Start launches the workers. Running jobs are cancelled when ctx ends.
// Calling it more than once has no effect.
func (e *Executor) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		context.AfterFunc(ctx, e.cancelRun)
		for i := 0; i < e.cfg.Workers; i++ {
			e.wg.Add(1)
			go e.worker()
		}
		slog.Info("job executor started", "workers", e.cfg.Workers, "queue_depth", e.cfg.QueueDepth)
	})
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx ends first, running jobs are cancelled and jobs still in
// the queue are marked as failed, so every accepted job reaches a terminal
// state before Shutdown returns.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown deadline reached, cancelling running jobs")
		e.cancelRun()
		<-done
		err = ctx.Err()
	}

	// Only reached without workers, when Start was never called.
	for t := range e.queue {
		e.abandon(t)
	}

	e.cancelRun()
	return err
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for t := range e.queue {
		if e.runCtx.Err() != nil {
			e.abandon(t)
			continue
		}
		e.process(t)
	}
}

func (e *Executor) process(t task) {
	defer func() { <-e.slots }()

	metrics.IncJobsInFlight()
	defer metrics.DecJobsInFlight()

	start := time.Now()
	ctx, cancel := context.WithTimeout(e.runCtx, e.cfg.Timeout)
	defer cancel()

	result, err := e.run(ctx, t)
	if err != nil {
		msg := analysis.UserMessage(err)
		if e.runCtx.Err() != nil {
			msg = MsgShuttingDown
		}
		slog.Error("job failed", "job_id", t.id, "username", t.identity, "error", err, "message", msg)
		e.finish(t, models.JobStatusError, start, store.WithErrorMessage(msg))
		return
	}

	e.finish(t, models.JobStatusDone, start, store.WithResult(result))
}

// run calls the runner and turns a panic into an error so the job still
// reaches a terminal state.
func (e *Executor) run(ctx context.Context, t task) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job", "error", r, "job_id", t.id)
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.runner.Run(ctx, t.identity)
}

func (e *Executor) abandon(t task) {
	defer func() { <-e.slots }()
	e.finish(t, models.JobStatusError, time.Now(), store.WithErrorMessage(MsgShuttingDown))
}

// finish writes the terminal state. It uses its own context so a cancelled
// job can still be recorded.
func (e *Executor) finish(t task, status string, start time.Time, opt store.JobUpdateOption) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	err := e.store.UpdateJobStatus(ctx, t.id, status, opt)
	switch {
	case err == nil:
		metrics.ObserveJobFinished(status, time.Since(start))
		slog.Info("job finished", "job_id", t.id, "status", status,
			"duration", time.Since(start), "waited", start.Sub(t.accepted))
	case errors.Is(err, store.ErrTerminalState):
		slog.Warn("job already terminal, dropping write", "job_id", t.id, "status", status)
	default:
		slog.Error("failed to record job state", "job_id", t.id, "status", status, "error", err)
	}
}
