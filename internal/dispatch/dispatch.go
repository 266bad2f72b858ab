// Package dispatch selects training or serving from the first command-line
// argument and hands off to the matching entrypoint.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ThatCatDev/tanrenai/estimator/internal/environment"
	"github.com/ThatCatDev/tanrenai/estimator/internal/handler"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/internal/server"
	"github.com/ThatCatDev/tanrenai/estimator/internal/training"
)

// Mode is the first command-line argument.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeServe Mode = "serve"
)

// HandlerService is the request handler the serving entrypoint loads.
const HandlerService = handler.DefaultHandlerService

// UsageError reports a bad command line. No entrypoint has run when it is
// returned.
type UsageError struct {
	Msg string
	Err error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ModeUsage is the message of the error returned for a missing or unknown mode.
const ModeUsage = "invalid argument: you must pass 'train' for training mode or 'serve' for serving mode"

// Dispatcher wires the mode switch to its collaborators.
type Dispatcher struct {
	Environment environment.Source
	Trainer     training.Entrypoint
	Server      server.Entrypoint
	// Output receives --help text; defaults to stderr.
	Output io.Writer
	Log    logrus.FieldLogger
}

// Run dispatches on args[0]. args excludes the program name.
func (d *Dispatcher) Run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return &UsageError{Msg: ModeUsage}
	}

	switch Mode(args[0]) {
	case ModeTrain:
		return d.train(ctx, args[1:])
	case ModeServe:
		return d.serve(ctx)
	default:
		return &UsageError{Msg: ModeUsage}
	}
}

func (d *Dispatcher) train(ctx context.Context, args []string) error {
	log := logging.OrDiscard(d.Log).WithField("mode", ModeTrain)

	env, err := d.Environment.Load()
	if err != nil {
		return fmt.Errorf("load training environment: %w", err)
	}

	cfg, ignored, err := parseTrainingConfig(env, args, d.output())
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(ignored) > 0 {
		log.WithField("ignored", ignored).Debug("ignoring unrecognized arguments")
	}

	log.WithField("config", cfg).Info("starting training")
	return d.Trainer.Start(ctx, cfg)
}

func (d *Dispatcher) serve(ctx context.Context) error {
	logging.OrDiscard(d.Log).WithFields(logrus.Fields{
		"mode":    ModeServe,
		"handler": HandlerService,
	}).Info("starting model server")
	return d.Server.StartModelServer(ctx, HandlerService)
}

func (d *Dispatcher) output() io.Writer {
	if d.Output != nil {
		return d.Output
	}
	return os.Stderr
}
