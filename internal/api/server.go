// Package api exposes the matching service over HTTP: the synchronous
// scoring surface (/match, /compare, /explain), the queued surface under
// /v2, and the operational endpoints (/health, /algorithms, /metrics).
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/app/engine"
	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/health"
	"github.com/matchd-io/matchd/internal/infra/queue"
)

// ResultSource is the read side of the result store. Jobs that have not
// reached it yet are answered from the broker's registry instead.
type ResultSource interface {
	Load(ctx context.Context, jobID string) (*domain.StoredResult, error)
	Recent(ctx context.Context, limit int) ([]domain.StoredResult, error)
}

// Server is the matchd HTTP API server.
type Server struct {
	engine  *engine.Engine
	broker  *queue.Broker
	results ResultSource
	checker *health.Checker

	version        string
	secret         string // non-empty enables bearer auth on /v2
	started        time.Time
	metricsEnabled bool
	log            *zap.Logger
}

// NewServer creates an API server over the core collaborators. broker and
// results may be nil, which disables the corresponding /v2 surfaces.
func NewServer(eng *engine.Engine, broker *queue.Broker, results ResultSource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:  eng,
		broker:  broker,
		results: results,
		version: "dev",
		started: time.Now(),
		log:     log.Named("api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetVersion sets the version string reported by /health.
func (s *Server) SetVersion(v string) { s.version = v }

// SetAuthSecret enables HS256 bearer auth on the /v2 surface.
func (s *Server) SetAuthSecret(secret string) { s.secret = secret }

// SetHealthChecker wires the periodic checker into /health reporting.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	// Synchronous matching surface
	r.Post("/match", s.handleMatch)
	r.Post("/compare", s.handleCompare)
	r.Post("/explain", s.handleExplain)
	r.Get("/algorithms", s.handleAlgorithms)
	r.Get("/health", s.handleHealth)

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Queued surface
	r.Route("/v2", func(r chi.Router) {
		if s.secret != "" {
			r.Use(bearerAuth(s.secret))
		}
		r.Post("/match", s.handleEnqueueMatch)
		r.Post("/find-jobs", s.handleEnqueueFindJobs)
		r.Post("/find-candidates", s.handleEnqueueFindCandidates)
		r.Get("/jobs", s.handleRecentJobs)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/queue/stats", s.handleQueueStats)
	})

	return r
}

// statusFor maps a classified error to a transport status code.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindTransientExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for browser callers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
