// Package server exposes playout status, the as-run playlist and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source provides the content the server publishes.
type Source interface {
	Generate() (string, error)
	GetStats() map[string]any
}

// Server serves the as-run playlist, health and metrics endpoints.
type Server struct {
	source     Source
	port       int
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new HTTP server. A nil gatherer disables /metrics.
func New(source Source, port int, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		source:   source,
		port:     port,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the request router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/playlist.m3u8", s.handlePlaylist)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/cluster/status", s.handleClusterStatus)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info("starting HTTP server", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// handlePlaylist serves the as-run playlist
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	content, err := s.source.Generate()
	if err != nil {
		s.logger.Error("failed to generate playlist", "error", err)
		http.Error(w, "failed to generate playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

// handleHealth serves playout status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.source.GetStats()

	status := "ok"
	if _, failed := stats["error"]; failed {
		status = "error"
	}

	health := map[string]any{
		"status": status,
		"stats":  stats,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleClusterStatus serves the Raft view of this node, or 404 when the
// source is not clustered.
func (s *Server) handleClusterStatus(w http.ResponseWriter, r *http.Request) {
	info, ok := s.source.GetStats()["cluster"].(map[string]any)
	if !ok {
		http.Error(w, "cluster mode not enabled", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
