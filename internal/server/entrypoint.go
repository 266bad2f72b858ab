package server

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/handler"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
)

// Entrypoint starts the model server for the named handler and blocks for
// the lifetime of the server.
type Entrypoint interface {
	StartModelServer(ctx context.Context, handlerService string) error
}

// ModelServer is the production Entrypoint.
type ModelServer struct {
	Registry *handler.Registry
	// Config overrides the environment-derived configuration.
	Config *Config
	Log    logrus.FieldLogger
}

// StartModelServer resolves and loads the handler, then serves until ctx is
// cancelled. The handler is closed on return.
func (m *ModelServer) StartModelServer(ctx context.Context, handlerService string) error {
	log := logging.OrDiscard(m.Log).WithField("handler", handlerService)

	cfg := m.Config
	if cfg == nil {
		var err error
		if cfg, err = LoadConfig(); err != nil {
			return err
		}
	}

	registry := m.Registry
	if registry == nil {
		registry = handler.DefaultRegistry()
	}

	h, err := registry.Build(handler.Context{
		Name:           handlerService,
		ModelDir:       cfg.ModelDir,
		CodeDir:        cfg.CodeDir,
		StartupTimeout: cfg.StartupTimeout(),
		Log:            log,
	})
	if err != nil {
		return err
	}

	log.Info("loading handler")
	if err := h.Load(ctx); err != nil {
		h.Close()
		return fmt.Errorf("load handler %s: %w", handlerService, err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			log.WithError(err).Warn("handler close error")
		}
	}()

	return New(cfg, h, log).Start(ctx)
}
