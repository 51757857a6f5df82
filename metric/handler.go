package metric

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/neurostream/errors"
)

// Server exposes the registry over HTTP for Prometheus scraping.
type Server struct {
	addr     string
	path     string
	registry *MetricsRegistry

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a metrics server. Addr defaults to :9102 and path
// to /metrics.
func NewServer(addr, path string, registry *MetricsRegistry) *Server {
	if addr == "" {
		addr = ":9102"
	}
	if path == "" {
		path = "/metrics"
	}
	return &Server{addr: addr, path: path, registry: registry}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "MetricsServer", "Start", "begin serving")
	}
	if s.registry == nil {
		return errors.WrapFatal(fmt.Errorf("nil registry"), "MetricsServer", "Start", "begin serving")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "addr", srv.Addr, "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	s.server = nil
	if err != nil {
		return errors.Wrap(err, "MetricsServer", "Stop", "graceful shutdown")
	}
	return nil
}
