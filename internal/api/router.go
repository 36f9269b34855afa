package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mw "github.com/kontrategy/kontrategy-api/internal/api/middleware"
	"github.com/kontrategy/kontrategy-api/internal/api/response"
	"github.com/kontrategy/kontrategy-api/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	AllowedOrigins        []string
	// TrustForwardedHeaders lets X-Forwarded-For and X-Real-IP set the
	// client identity. Off, clients are keyed on the socket peer.
	TrustForwardedHeaders bool

	RootHandler    http.HandlerFunc
	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler
	StartAnalysis  http.HandlerFunc
	AnalysisStatus http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware
	if deps.TrustForwardedHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.ClientIdentity)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/", orNotImplemented(deps.RootHandler))
	r.Get("/healthz", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	} else {
		r.Get("/metrics", orNotImplemented(nil))
	}

	r.Route("/analysis", func(r chi.Router) {
		r.Post("/start", orNotImplemented(deps.StartAnalysis))
		r.Get("/status/{job_id}", orNotImplemented(deps.AnalysisStatus))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
