// Package api exposes the scraper and the aggregation pipeline as JSON over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// Route paths served by Server.
const (
	PathResolve  = "/api/resolve"
	PathListings = "/api/listings"
	PathInfo     = "/api/info"
	PathSummary  = "/api/summary"
	PathBatch    = "/api/batch"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

// Scraper answers the per-complex lookups.
type Scraper interface {
	Resolve(ctx context.Context, name string) (string, bool)
	Listings(ctx context.Context, id string, category models.TradeCategory, size int) models.ListingStats
	Info(ctx context.Context, id string) models.EntityInfo
}

// Summarizer builds summaries across trade categories and targets.
type Summarizer interface {
	Summarize(ctx context.Context, name string, size int) models.EntitySummary
	SummarizeAll(ctx context.Context, targets []models.TargetEntity) models.BatchResult
}

// ResolveResponse is the body of a resolve request. Identifier is null when
// the name did not resolve.
type ResolveResponse struct {
	Name       string  `json:"name"`
	Identifier *string `json:"identifier"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error"`
}

// ErrorResponse is returned with 4xx and 5xx statuses.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Browser string `json:"browser"`
}

// Server routes HTTP requests to the scraper and the pipeline.
type Server struct {
	scraper    Scraper
	summarizer Summarizer
	targets    []models.TargetEntity
	metrics    http.Handler
	browser    func() string
}

// Option customises a Server.
type Option func(*Server)

// WithMetricsHandler serves h under /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithBrowserState reports the browser session state in the health check.
func WithBrowserState(state func() string) Option {
	return func(s *Server) {
		s.browser = state
	}
}

// NewServer builds a server answering batch requests for targets.
func NewServer(scraper Scraper, summarizer Summarizer, targets []models.TargetEntity, opts ...Option) *Server {
	s := &Server{
		scraper:    scraper,
		summarizer: summarizer,
		targets:    targets,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathResolve, s.handleResolve)
	mux.HandleFunc("GET "+PathListings, s.handleListings)
	mux.HandleFunc("GET "+PathInfo, s.handleInfo)
	mux.HandleFunc("GET "+PathSummary, s.handleSummary)
	mux.HandleFunc("GET "+PathBatch, s.handleBatch)
	mux.HandleFunc("GET "+PathHealth, s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET "+PathMetrics, s.metrics)
	}
	return recoverMiddleware(logMiddleware(mux))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := ResolveResponse{Name: name}
	if id, ok := s.scraper.Resolve(r.Context(), name); ok {
		resp.Identifier = &id
		resp.OK = true
	} else {
		resp.Error = "identifier not found"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	id, err := requiredParam(r, "identifier")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	raw, err := requiredParam(r, "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	category, err := models.ParseTradeCategory(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	size, err := sizeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, s.scraper.Listings(r.Context(), id, category, size))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	id, err := requiredParam(r, "identifier")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.scraper.Info(r.Context(), id))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	size, err := sizeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.summarizer.Summarize(r.Context(), name, size))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summarizer.SummarizeAll(r.Context(), s.targets))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.browser != nil {
		resp.Browser = s.browser()
	}
	writeJSON(w, http.StatusOK, resp)
}

func requiredParam(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return value, nil
}

func sizeParam(r *http.Request) (int, error) {
	raw, err := requiredParam(r, "size")
	if err != nil {
		return 0, err
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("size must be a positive integer, got %q", raw)
	}
	return size, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("encode response failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("handler panicked", slog.String("path", r.URL.Path), slog.Any("panic", v))
				writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
