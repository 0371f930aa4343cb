package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"donorprep/internal/eligibility"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	addr   string
	model  *eligibility.Model
	logger zerolog.Logger
}

func NewServer(addr string, model *eligibility.Model, logger zerolog.Logger) *Server {
	return &Server{addr: addr, model: model, logger: logger}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           SetupRoutes(s.model, s.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Int("records", s.model.Size()).Msg("scoring api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("scoring api shutting down")
	return srv.Shutdown(shutdownCtx)
}
