// Package server is the model-serving entrypoint: it loads an inference
// handler by identifier and serves the SageMaker inference HTTP contract in
// front of it.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/handler"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server serves /ping, /invocations and /execution-parameters for one
// loaded handler.
type Server struct {
	cfg     *Config
	http    *http.Server
	handler handler.Handler
	log     logrus.FieldLogger
}

// New creates a Server for a handler that has already been loaded.
func New(cfg *Config, h handler.Handler, log logrus.FieldLogger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: h,
		log:     logging.OrDiscard(log),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           withRequestID(withLogging(s.log, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens on the configured address and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.WithFields(logrus.Fields{
		"addr":      ln.Addr().String(),
		"model_dir": s.cfg.ModelDir,
	}).Info("model server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down model server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("server shutdown error")
		}
		return nil
	case err := <-errCh:
		return err
	}
}
