// Package httpapi exposes the query pipeline and reindex control over a
// chi router.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/metrics"
)

// QueryService runs one conversational query end to end.
type QueryService interface {
	Query(ctx context.Context, q domain.Query) (domain.SearchOutcome, error)
}

// ReindexService controls background index rebuilds.
type ReindexService interface {
	Start(ctx context.Context) (domain.ReindexTask, error)
	Status(id string) (domain.ReindexTask, error)
	Cancel(id string) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API.
type Server struct {
	shopper       QueryService
	reindex       ReindexService
	health        map[string]func(context.Context) error
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. healthChecks maps a dependency
// name to its ping function.
func NewServer(
	shopper QueryService,
	reindex ReindexService,
	healthChecks map[string]func(context.Context) error,
	logger *zap.Logger,
) *Server {
	s := &Server{
		shopper: shopper,
		reindex: reindex,
		health:  healthChecks,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, "empty_query"),
		sentinelHandler(domain.ErrInvalidFilterSpec, http.StatusBadRequest, "invalid_filter"),
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"),
		sentinelHandler(domain.ErrTaskNotFound, http.StatusNotFound, "task_not_found"),
		sentinelHandler(domain.ErrReindexRunning, http.StatusConflict, "reindex_running"),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, "provider_unavailable"),
	}
	return s
}

// Router assembles the middleware stack and routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()

	r.Use(recoverer(s.logger))
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.PostQuery)
		r.Post("/reindex", s.StartReindex)
		r.Get("/reindex/{id}", s.GetReindex)
		r.Post("/reindex/{id}/cancel", s.CancelReindex)
	})

	return r
}

type queryRequest struct {
	Message   string `json:"message"`
	Image     string `json:"image,omitempty"` // base64
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type productItem struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Vendor      string   `json:"vendor,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	Images      []string `json:"images,omitempty"`
	Quantity    int      `json:"quantity"`
	Distance    float64  `json:"distance"`
	Origin      string   `json:"origin"`
}

type queryResponse struct {
	SessionID               string        `json:"session_id"`
	ToolUsed                string        `json:"tool_used"`
	Response                string        `json:"response"`
	Products                []productItem `json:"products"`
	Suggestions             []string      `json:"suggestions,omitempty"`
	FiltersPartiallyApplied bool          `json:"filters_partially_applied,omitempty"`
	SemanticUnavailable     bool          `json:"semantic_unavailable,omitempty"`
}

// PostQuery handles POST /api/v1/query.
func (s *Server) PostQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	var image []byte
	if req.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "image must be base64-encoded")
			return
		}
		image = decoded
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	outcome, err := s.shopper.Query(r.Context(), domain.Query{
		Text:      req.Message,
		Image:     image,
		SessionID: sessionID,
		Limit:     req.Limit,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]productItem, len(outcome.Results))
	for i, res := range outcome.Results {
		items[i] = productToItem(res)
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SessionID:               sessionID,
		ToolUsed:                string(outcome.ToolUsed),
		Response:                outcome.Response,
		Products:                items,
		Suggestions:             outcome.Suggestions,
		FiltersPartiallyApplied: outcome.FiltersPartiallyApplied,
		SemanticUnavailable:     outcome.SemanticUnavailable,
	})
}

type reindexResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ProcessedCount int    `json:"processed_count"`
	FailedCount    int    `json:"failed_count"`
	TotalCount     int    `json:"total_count"`
	LastError      string `json:"last_error,omitempty"`
}

// StartReindex handles POST /api/v1/reindex.
func (s *Server) StartReindex(w http.ResponseWriter, r *http.Request) {
	task, err := s.reindex.Start(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskToResponse(task))
}

// GetReindex handles GET /api/v1/reindex/{id}.
func (s *Server) GetReindex(w http.ResponseWriter, r *http.Request) {
	task, err := s.reindex.Status(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task))
}

// CancelReindex handles POST /api/v1/reindex/{id}/cancel.
func (s *Server) CancelReindex(w http.ResponseWriter, r *http.Request) {
	if err := s.reindex.Cancel(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.health))
	for name, ping := range s.health {
		if err := ping(r.Context()); err != nil {
			checks[name] = "unhealthy"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks[name] = "healthy"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func productToItem(res domain.RankedResult) productItem {
	rec := res.Record
	return productItem{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Price:       rec.Price,
		Vendor:      rec.Vendor,
		ProductType: rec.ProductType,
		Images:      rec.Images,
		Quantity:    rec.Quantity,
		Distance:    res.Distance,
		Origin:      string(res.Origin),
	}
}

func taskToResponse(t domain.ReindexTask) reindexResponse {
	return reindexResponse{
		ID:             t.ID,
		Status:         string(t.Status),
		ProcessedCount: t.ProcessedCount,
		FailedCount:    t.FailedCount,
		TotalCount:     t.TotalCount,
		LastError:      t.LastError,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidFilterSpec,
		domain.ErrProductNotFound,
		domain.ErrTaskNotFound,
		domain.ErrReindexRunning,
		domain.ErrProviderUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler matching one sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
