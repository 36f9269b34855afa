package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kontrategy/kontrategy-api/internal/api/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

// captureClientID returns a handler that records the client identity it sees.
func captureClientID(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = mw.ClientID(r)
		w.WriteHeader(http.StatusOK)
	})
}

// ========================================
// Client Identity Middleware Tests
// ========================================

func TestClientIdentity_RemoteAddrHost(t *testing.T) {
	var got string
	handler := mw.ClientIdentity(captureClientID(&got))

	req := httptest.NewRequest("POST", "/analysis/start", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", got)
}

func TestClientIdentity_ForwardedForViaRealIP(t *testing.T) {
	var got string
	handler := chimw.RealIP(mw.ClientIdentity(captureClientID(&got)))

	req := httptest.NewRequest("POST", "/analysis/start", nil)
	req.RemoteAddr = "10.0.0.1:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.4", got)
}

func TestClientIdentity_RealIPHeader(t *testing.T) {
	var got string
	handler := chimw.RealIP(mw.ClientIdentity(captureClientID(&got)))

	req := httptest.NewRequest("POST", "/analysis/start", nil)
	req.RemoteAddr = "10.0.0.1:443"
	req.Header.Set("X-Real-IP", "198.51.100.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.9", got)
}

func TestClientIdentity_IPv6(t *testing.T) {
	var got string
	handler := mw.ClientIdentity(captureClientID(&got))

	req := httptest.NewRequest("POST", "/analysis/start", nil)
	req.RemoteAddr = "[2001:db8::1]:8080"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "2001:db8::1", got)
}

func TestClientID_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", mw.ClientID(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", mw.ClientID(req))
}

func TestSetClientID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(mw.SetClientID(req.Context(), "client-a"))
	assert.Equal(t, "client-a", mw.ClientID(req))
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	handler := mw.Recovery(panicking)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := mw.Recovery(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	handler := mw.Logger(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_PassesThroughErrorStatus(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
