package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cascadeio/cascade/internal/logger"
)

// Server exposes the admin/introspection HTTP surface of a running
// pipeline: health and the persisted operator state metadata.
type Server struct {
	addr           string
	checkpointRoot string
	logger         zerolog.Logger
}

// New creates an admin server over a checkpoint root.
func New(addr, checkpointRoot string) *Server {
	return &Server{
		addr:           addr,
		checkpointRoot: checkpointRoot,
		logger:         logger.GetLogger("server"),
	}
}

// Router builds the admin routes.
func (s *Server) Router() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)
	router.Use(middleware.RequestID)

	router.Get("/operators", s.handleListOperators)
	router.Get("/operators/{operatorID}", s.handleGetOperator)

	return router
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
