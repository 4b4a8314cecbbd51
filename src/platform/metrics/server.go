package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"heartbeat/src/platform/perr"
	"heartbeat/src/util"
)

const shutdownTimeout = 3 * time.Second

// Server hosts the Prometheus /metrics scrape endpoint on a background
// goroutine. Implements the lifecycle Start/Stop contract.
type Server struct {
	logger zerolog.Logger
	srv    *http.Server
	port   int
}

func NewServer(port int, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		port: port,
	}
}

func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return oops.
			In(util.GetFunctionName()).
			Code(perr.EINIT).
			Wrapf(err, "can't bind metrics endpoint on port %d", s.port)
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server terminated unexpectedly")
		}
	}()

	s.logger.Info().Msgf("Prometheus /metrics available on port %d", s.port)
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Metrics server did not shut down cleanly")
	}
}
