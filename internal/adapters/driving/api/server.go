// Package api serves ingestion and retrieval over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// Server timeouts. Ingestion requests can run for minutes.
const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 10 * time.Minute
	idleTimeout     = 2 * time.Minute
	shutdownTimeout = 15 * time.Second

	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 1 << 20
)

// Config configures the router.
type Config struct {
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64

	// Burst is the number of requests allowed at once (default 10).
	Burst int

	// Recorder observes every request; may be nil.
	Recorder RequestRecorder

	// Metrics serves /metrics; may be nil.
	Metrics http.Handler

	// MCP serves the Model Context Protocol at /mcp; may be nil.
	MCP http.Handler
}

// Handler holds the services behind the routes.
type Handler struct {
	ingest    driving.IngestService
	retrieval driving.RetrievalService
}

// NewRouter builds the HTTP routes.
func NewRouter(ingest driving.IngestService, retrieval driving.RetrievalService, cfg Config) http.Handler {
	h := &Handler{ingest: ingest, retrieval: retrieval}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument(cfg.Recorder))

	r.Get("/healthz", h.health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			burst := cfg.Burst
			if burst == 0 {
				burst = 10
			}
			r.Use(newIPRateLimiter(cfg.RateLimit, burst).middleware)
		}
		r.Post("/query", h.query)
		r.Get("/stats", h.stats)
		r.Post("/ingest/web", h.ingestWeb)
		r.Post("/ingest/folder", h.ingestFolder)
	})
	return r
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// QueryResult is one retrieved chunk.
type QueryResult struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryResponse is the body returned by POST /api/query.
type QueryResponse struct {
	Question string        `json:"question"`
	Results  []QueryResult `json:"results"`
}

// IngestWebRequest is the body of POST /api/ingest/web.
type IngestWebRequest struct {
	URLs []string `json:"urls"`
}

// IngestFolderRequest is the body of POST /api/ingest/folder.
type IngestFolderRequest struct {
	Path string `json:"path"`
}

// IngestResponse carries the job report and, for aborted jobs, the error.
type IngestResponse struct {
	Report *domain.BatchReport `json:"report"`
	Error  string              `json:"error,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	n, err := h.retrieval.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "documents": n})
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.K == 0 {
		req.K = domain.DefaultRetrievalK
	}

	results, err := h.retrieval.Retrieve(r.Context(), req.Question, req.K)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := QueryResponse{Question: req.Question, Results: make([]QueryResult, len(results))}
	for i, res := range results {
		resp.Results[i] = QueryResult{
			ID:       res.Document.ID,
			Source:   res.Document.Source(),
			Score:    res.Score,
			Text:     res.Document.Text,
			Metadata: res.Document.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.retrieval.Stats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ingestWeb(w http.ResponseWriter, r *http.Request) {
	var req IngestWebRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}

	report, err := h.ingest.IngestURLs(r.Context(), urls)
	writeReport(w, report, err)
}

func (h *Handler) ingestFolder(w http.ResponseWriter, r *http.Request) {
	var req IngestFolderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	report, err := h.ingest.IngestFolder(r.Context(), req.Path)
	writeReport(w, report, err)
}

func writeReport(w http.ResponseWriter, report *domain.BatchReport, err error) {
	if err != nil {
		logger.Warn("ingest failed: %v", err)
		writeJSON(w, statusFor(err), IngestResponse{Report: report, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{Report: report})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
