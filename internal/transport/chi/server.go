package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
	"github.com/kailas-cloud/searchsync/internal/metrics"
	healthuc "github.com/kailas-cloud/searchsync/internal/usecase/health"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/searchsync/internal/usecase/search"
)

// Error codes returned in ErrorResponse.
const (
	codeBadRequest    = "bad_request"
	codeUnauthorized  = "unauthorized"
	codeNotFound      = "not_found"
	codeNotSearchable = "not_searchable"
	codeBackendError  = "backend_error"
	codeInternal      = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the JSON body of /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HitResponse is one search result.
type HitResponse struct {
	ID    string  `json:"id"`
	Type  string  `json:"type,omitempty"` // content type token of the matched row
	PK    string  `json:"pk,omitempty"`
	Score float64 `json:"score"`
}

// SearchResponse is the JSON body of /search.
type SearchResponse struct {
	ContentType string        `json:"content_type"`
	Backend     string        `json:"backend,omitempty"`
	Hits        []HitResponse `json:"hits"`
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Searcher runs queries against the search backends.
type Searcher interface {
	Search(ctx context.Context, backend, contentType, query string, limit int) ([]indexing.Hit, error)
}

// Server serves the ops endpoints and the query endpoint.
type Server struct {
	health HealthChecker
	search Searcher
	logger *zap.Logger
}

// NewServer creates the HTTP server. search may be nil.
func NewServer(health HealthChecker, search Searcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{health: health, search: search, logger: logger}
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if s.search != nil {
		r.Get("/search/{contentType}", s.Search)
	}
	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	resp := HealthResponse{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		resp.Checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Search handles GET /search/{contentType}?q=&backend=&limit=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "contentType")
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	backend := q.Get("backend")
	hits, err := s.search.Search(r.Context(), backend, contentType, q.Get("q"), limit)
	if err != nil {
		s.handleSearchError(w, err)
		return
	}

	resp := SearchResponse{ContentType: contentType, Backend: backend, Hits: make([]HitResponse, len(hits))}
	for i, h := range hits {
		hr := HitResponse{ID: h.ID, Score: h.Score}
		if token, pk, ok := mapping.SplitDocumentID(h.ID); ok {
			hr.Type, hr.PK = token, pk
		}
		resp.Hits[i] = hr
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, searchuc.ErrUnknownContentType), errors.Is(err, indexing.ErrUnknownBackend):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, searchuc.ErrNotSearchable):
		writeError(w, http.StatusNotImplemented, codeNotSearchable, err.Error())
	default:
		s.logger.Error("Search request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeBackendError, "search backend error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
