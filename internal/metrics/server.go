package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/systmms/dsenc/internal/logging"
)

// ServerConfig holds configuration for the metrics HTTP server.
type ServerConfig struct {
	// Address is the listen address, e.g. ":9090".
	Address string

	// Path is the path to serve metrics on.
	Path string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the default metrics server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":9090",
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves a Prometheus registry and a health endpoint.
type Server struct {
	config   ServerConfig
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server for gatherer.
func NewServer(config ServerConfig, gatherer prometheus.Gatherer, logger *logging.Logger) *Server {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{config: config, gatherer: gatherer, logger: logger}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server error: %v", err)
		}
	}()
	s.logger.Debug("Serving metrics on %s%s", ln.Addr(), s.config.Path)
	return nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
