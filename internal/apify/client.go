package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kontrategy/kontrategy-api/internal/metrics"
	"golang.org/x/time/rate"
)

// Sentinel errors for task runner failures.
var (
	ErrStartFailed   = errors.New("apify task start failed")
	ErrTaskFailed    = errors.New("apify task failed")
	ErrPollTimeout   = errors.New("apify task poll timeout")
	ErrRequestFailed = errors.New("apify request failed")
	ErrUnreachable   = errors.New("apify unreachable")
	ErrTimeout       = errors.New("apify request timeout")
	ErrUnknownKind   = errors.New("apify unknown task kind")
)

// TaskKind selects which actor a task runs on.
type TaskKind string

const (
	KindProfile TaskKind = "profile"
	KindPosts   TaskKind = "posts"
)

// Run statuses as reported by the task runner.
const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborting  = "ABORTING"
	StatusAborted   = "ABORTED"
	StatusTimingOut = "TIMING-OUT"
	StatusTimedOut  = "TIMED-OUT"
)

// maxPollErrors is how many consecutive status requests may fail before Poll gives up.
const maxPollErrors = 3

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// IsTerminal reports whether status is a final run status.
func IsTerminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// TaskFailedError reports a run that ended in a non-success terminal status.
type TaskFailedError struct {
	RunID  string
	Status string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("apify run %s ended with status %s", e.RunID, e.Status)
}

func (e *TaskFailedError) Is(target error) bool {
	return target == ErrTaskFailed
}

// Input is the actor input for one task.
type Input struct {
	InstagramURLs []string `json:"instagramUrls"`
	ResultsLimit  int      `json:"resultsLimit,omitempty"`
}

// Record is one dataset row, returned verbatim.
type Record map[string]any

// Run is the task runner's view of an actor run.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Client is the interface for running scraper tasks.
type Client interface {
	Start(ctx context.Context, kind TaskKind, input Input) (string, error)
	Poll(ctx context.Context, runID string, timeout time.Duration) (string, error)
	Fetch(ctx context.Context, datasetID string) ([]Record, error)
	Run(ctx context.Context, kind TaskKind, input Input, timeout time.Duration) ([]Record, error)
}

// Config holds the HTTP client settings.
type Config struct {
	BaseURL           string
	Token             string
	ProfileActor      string
	PostsActor        string
	PollInterval      time.Duration
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
}

// HTTPClient implements Client using the Apify REST API.
type HTTPClient struct {
	baseURL      string
	token        string
	actors       map[TaskKind]string
	pollInterval time.Duration
	limiter      *rate.Limiter
	client       *http.Client
}

// NewHTTPClient creates a new Apify HTTP client.
func NewHTTPClient(cfg Config) *HTTPClient {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(int(cfg.RequestsPerSecond), 1)
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		actors: map[TaskKind]string{
			KindProfile: cfg.ProfileActor,
			KindPosts:   cfg.PostsActor,
		},
		pollInterval: pollInterval,
		limiter:      rate.NewLimiter(limit, burst),
		client:       &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (c *HTTPClient) Start(ctx context.Context, kind TaskKind, input Input) (string, error) {
	actor := c.actors[kind]
	if actor == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encoding actor input: %w", err)
	}

	u := fmt.Sprintf("%s/v2/acts/%s/runs", c.baseURL, url.PathEscape(actor))
	var run runEnvelope
	status, err := c.do(ctx, http.MethodPost, u, body, &run)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: status %d", ErrStartFailed, status)
	}
	if run.Data.ID == "" {
		return "", fmt.Errorf("%w: response carried no run id", ErrStartFailed)
	}

	slog.Debug("apify run started", "kind", kind, "actor", actor, "run_id", run.Data.ID)
	return run.Data.ID, nil
}

// Poll queries the run status every poll interval until the run reaches a
// terminal status or timeout elapses.
func (c *HTTPClient) Poll(ctx context.Context, runID string, timeout time.Duration) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		run, err := c.getRun(pollCtx, runID)
		switch {
		case err == nil:
			failures = 0
			if IsTerminal(run.Status) {
				if run.Status != StatusSucceeded {
					return "", &TaskFailedError{RunID: runID, Status: run.Status}
				}
				return run.DefaultDatasetID, nil
			}
		case pollCtx.Err() != nil:
			// the select below reports why the context ended
		default:
			failures++
			if failures >= maxPollErrors {
				return "", fmt.Errorf("polling run %s: %w", runID, err)
			}
			slog.Warn("apify poll failed, retrying", "run_id", runID, "attempt", failures, "error", err)
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: run %s still running after %s", ErrPollTimeout, runID, timeout)
		case <-ticker.C:
		}
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, datasetID string) ([]Record, error) {
	params := url.Values{
		"clean":  {"true"},
		"format": {"json"},
	}
	u := fmt.Sprintf("%s/v2/datasets/%s/items?%s", c.baseURL, url.PathEscape(datasetID), params.Encode())

	var records []Record
	status, err := c.do(ctx, http.MethodGet, u, nil, &records)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: dataset %s status %d", ErrRequestFailed, datasetID, status)
	}
	if records == nil {
		return []Record{}, nil
	}
	return records, nil
}

// Run starts a task, waits for it and returns its dataset rows.
func (c *HTTPClient) Run(ctx context.Context, kind TaskKind, input Input, timeout time.Duration) ([]Record, error) {
	start := time.Now()

	runID, err := c.Start(ctx, kind, input)
	if err != nil {
		metrics.ObserveExternalTask(string(kind), "START_FAILED", time.Since(start))
		return nil, err
	}

	datasetID, err := c.Poll(ctx, runID, timeout)
	if err != nil {
		metrics.ObserveExternalTask(string(kind), outcomeLabel(err), time.Since(start))
		return nil, err
	}
	metrics.ObserveExternalTask(string(kind), StatusSucceeded, time.Since(start))

	records, err := c.Fetch(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("fetching %s dataset: %w", kind, err)
	}

	slog.Info("apify task finished", "kind", kind, "run_id", runID, "records", len(records), "duration", time.Since(start))
	return records, nil
}

func (c *HTTPClient) getRun(ctx context.Context, runID string) (*Run, error) {
	u := fmt.Sprintf("%s/v2/actor-runs/%s", c.baseURL, url.PathEscape(runID))

	var run runEnvelope
	status, err := c.do(ctx, http.MethodGet, u, nil, &run)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: run %s status %d", ErrRequestFailed, runID, status)
	}
	return &run.Data, nil
}

// do sends one request and decodes a 2xx body into out. The HTTP status is
// returned so callers can map non-2xx responses to their own sentinel.
func (c *HTTPClient) do(ctx context.Context, method, u string, body []byte, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, classifyError(err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq, body != nil)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, classifyError(err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding apify response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *HTTPClient) setHeaders(req *http.Request, hasBody bool) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// outcomeLabel turns a Poll error into a metrics label.
func outcomeLabel(err error) string {
	var failed *TaskFailedError
	switch {
	case errors.As(err, &failed):
		return failed.Status
	case errors.Is(err, ErrPollTimeout):
		return "POLL_TIMEOUT"
	default:
		return "ERROR"
	}
}

// --- Apify response types ---

type runEnvelope struct {
	Data Run `json:"data"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
