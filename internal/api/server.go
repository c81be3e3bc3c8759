// Package api exposes the HTTP surface: event ingestion, status, detection
// history and the WebSocket stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/observa-labs/traffic-sentinel/internal/config"
)

// Server wraps the HTTP listener and its routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires the handler set into a mux router with CORS applied.
func NewServer(cfg config.ServerConfig, h *Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/events", h.IngestEvent).Methods(http.MethodPost)
	v1.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	v1.HandleFunc("/anomalies", h.ListAnomalies).Methods(http.MethodGet)
	v1.HandleFunc("/anomalies/{id}", h.GetAnomaly).Methods(http.MethodGet)
	v1.Handle("/stream", h.Stream).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           c.Handler(r),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until the listener fails or is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", slog.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
