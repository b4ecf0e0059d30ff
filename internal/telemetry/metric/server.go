package metric

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server serves the /metrics endpoint.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a metrics server for the registry on addr.
func NewServer(addr string, r *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens on the configured address and serves in a goroutine.
// It returns the bound address, which differs from the configured one when
// port 0 was requested.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	s.logger.Info("metrics server listening", "addr", addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	return addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
