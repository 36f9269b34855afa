package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kontrategy/kontrategy-api/internal/cache"
	"github.com/kontrategy/kontrategy-api/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── helpers ────────────────────────────────────────────────────────────────

func testConfig(t *testing.T, redisURL string) *config.Config {
	t.Helper()
	t.Setenv("REDIS_URL", redisURL)
	t.Setenv("APIFY_TOKEN", "apify_api_test")
	t.Setenv("APIFY_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("AI_PROVIDER", "mock")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T) (*app, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	a, err := newApp(testConfig(t, "redis://"+mr.Addr()), rc)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.executor.Shutdown(ctx)
	})
	return a, mr
}

// ─── wiring tests ───────────────────────────────────────────────────────────

func TestNewApp_Routes(t *testing.T) {
	a, _ := newTestApp(t)

	for _, path := range []string{"/", "/healthz", "/metrics"} {
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestNewApp_HealthDegradedWhenRedisDown(t *testing.T) {
	a, mr := newTestApp(t)
	mr.Close()

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewApp_SubmitRecordsProcessingJob(t *testing.T) {
	a, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/analysis/start", strings.NewReader(`{"username":"foo"}`))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	jobID := started["job_id"]
	require.NotEmpty(t, jobID)

	// Workers are not started, so the job stays in processing.
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analysis/status/"+jobID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var job map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "processing", job["status"])
	assert.Equal(t, jobID, job["job_id"])
}

func TestNewApp_UnreachableCollectorFailsJob(t *testing.T) {
	a, _ := newTestApp(t)
	a.executor.Start(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/analysis/start", strings.NewReader(`{"username":"foo"}`))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/analysis/status/"+started["job_id"], nil))
		var job map[string]any
		if json.Unmarshal(w.Body.Bytes(), &job) != nil {
			return false
		}
		return job["status"] == "error" && job["error"] != ""
	}, 5*time.Second, 20*time.Millisecond)
}

// ─── run() tests ────────────────────────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "APIFY_TOKEN", "AI_PROVIDER"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidRedisURL(t *testing.T) {
	testConfig(t, "not-a-redis-url")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create redis cache")
}

func TestRun_FailsOnUnreachableRedis(t *testing.T) {
	testConfig(t, "redis://127.0.0.1:1")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
