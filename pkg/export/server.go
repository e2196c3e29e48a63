package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/padlatency/internal/logger"
)

// Server is the pull-mode metrics listener.
//
// Any request path returns the full current snapshot; scrapers that insist on
// /metrics and humans hitting / both get the same text. The listener runs on
// its own goroutine, separate from all pipeline threads, and only ever takes
// per-entry snapshot reads of the aggregate store.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// ServerConfig configures the pull listener.
type ServerConfig struct {
	// Port to listen on. The engine treats 0 as "pull mode disabled" and
	// never constructs a Server for it.
	Port int
}

// NewServer creates a pull server exposing reg. The server does not listen
// until Start is called.
func NewServer(reg *prometheus.Registry, config ServerConfig) *Server {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	// One snapshot per request regardless of path or method.
	mux := http.NewServeMux()
	mux.Handle("/", handler)

	return &Server{
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		addr: fmt.Sprintf(":%d", config.Port),
	}
}

// Handler returns the HTTP handler the listener serves. Exposed so tests and
// embedding hosts can mount the same snapshot endpoint on their own server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the listener and begins serving in the background.
//
// Bind failures (port in use, permission denied) are returned synchronously
// so the caller can fail fast at attach time. Serving errors after a
// successful bind are logged, not returned: losing the pull endpoint must not
// disturb measurement.
//
// Cancelling ctx triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind metrics listener on %s: %w", s.addr, err)
	}
	logger.Info("Metrics listener on %s", ln.Addr())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics listener failed: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(shutdownCtx)
	}()

	return nil
}

// Stop gracefully shuts the listener down. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics listener shutdown error: %w", err)
		} else {
			logger.Debug("Metrics listener stopped")
		}
	})
	return shutdownErr
}
