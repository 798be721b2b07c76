package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves a registry on /metrics.
type Server struct {
	httpserver http.Server
	listen     net.Listener
	logger     *slog.Logger
}

// NewServer listens on listenAddr. Serving starts with Start.
func NewServer(listenAddr string, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	listen, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	return &Server{
		httpserver: http.Server{
			Handler: mux,
		},
		listen: listen,
		logger: logger,
	}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listen.Addr()
}

func (s *Server) Start() {
	s.logger.Info("starting metrics server", "addr", s.listen.Addr().String())
	go func() {
		err := s.httpserver.Serve(s.listen)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.logger.Info("stopped metrics server", "error", err)
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpserver.Shutdown(ctx)
}
