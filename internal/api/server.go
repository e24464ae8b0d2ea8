package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/config"
	"github.com/voralis/indexwatch/internal/indexer"
	"github.com/voralis/indexwatch/internal/metrics"
	"github.com/voralis/indexwatch/internal/runner"
)

// BatchRunner is the on-demand cycle surface the handlers need.
type BatchRunner interface {
	RunInspection(ctx context.Context, req runner.InspectionRequest) (indexer.BatchResult, error)
	RunSubmission(ctx context.Context, req runner.SubmissionRequest) (indexer.BatchResult, error)
}

// QuotaReader exposes the remaining daily budget per kind.
type QuotaReader interface {
	Remaining(ctx context.Context, propertyID string, kind indexer.QuotaKind) (int, error)
	Limit(kind indexer.QuotaKind) int
}

// SweepRunner triggers one full pass over auto-enabled properties.
type SweepRunner interface {
	Run(ctx context.Context) (indexer.SweepReport, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the batch runner, quota ledger, and sweeper.
type Server struct {
	router  chi.Router
	runner  BatchRunner
	quota   QuotaReader
	sweeper SweepRunner
	db      Pinger
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. sweeper and db
// may be nil; the sweep route then reports unavailable and readiness skips
// the database check.
func NewServer(
	batchRunner BatchRunner,
	quota QuotaReader,
	sweeper SweepRunner,
	db Pinger,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:  batchRunner,
		quota:   quota,
		sweeper: sweeper,
		db:      db,
		cfg:     cfg,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sweep", s.triggerSweep)
		r.Route("/properties/{property_id}", func(r chi.Router) {
			r.Post("/inspections", s.runInspections)
			r.Post("/submissions", s.runSubmissions)
			r.Get("/quota", s.getQuota)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type inspectionsRequest struct {
	URLs  []string `json:"urls"`
	Limit int      `json:"limit"`
}

func (s *Server) runInspections(w http.ResponseWriter, r *http.Request) {
	var req inspectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	result, err := s.runner.RunInspection(r.Context(), runner.InspectionRequest{
		PropertyID: chi.URLParam(r, "property_id"),
		URLs:       req.URLs,
		Limit:      req.Limit,
	})
	if err != nil {
		s.writeRunError(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type submissionsRequest struct {
	URLs   []string `json:"urls"`
	Action string   `json:"action"`
}

func (s *Server) runSubmissions(w http.ResponseWriter, r *http.Request) {
	var req submissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	action := indexer.ActionURLUpdated
	switch req.Action {
	case "", string(indexer.ActionURLUpdated):
	case string(indexer.ActionURLDeleted):
		action = indexer.ActionURLDeleted
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	result, err := s.runner.RunSubmission(r.Context(), runner.SubmissionRequest{
		PropertyID: chi.URLParam(r, "property_id"),
		URLs:       req.URLs,
		Action:     action,
	})
	if err != nil {
		s.writeRunError(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type quotaResponse struct {
	PropertyID string         `json:"property_id"`
	Quotas     map[string]any `json:"quotas"`
}

func (s *Server) getQuota(w http.ResponseWriter, r *http.Request) {
	propertyID := chi.URLParam(r, "property_id")
	quotas := make(map[string]any, 2)
	for _, kind := range []indexer.QuotaKind{indexer.QuotaInspection, indexer.QuotaSubmission} {
		remaining, err := s.quota.Remaining(r.Context(), propertyID, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "quota lookup failed")
			return
		}
		quotas[string(kind)] = map[string]int{
			"limit":     s.quota.Limit(kind),
			"remaining": remaining,
		}
	}
	writeJSON(w, http.StatusOK, quotaResponse{PropertyID: propertyID, Quotas: quotas})
}

func (s *Server) triggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweep not configured")
		return
	}
	report, err := s.sweeper.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeRunError maps domain errors to status codes. A partial result from an
// interrupted batch is still returned to the caller alongside the error.
func (s *Server) writeRunError(w http.ResponseWriter, err error, partial indexer.BatchResult) {
	switch {
	case errors.Is(err, runner.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, indexer.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case partial.Processed > 0:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"result": partial,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
