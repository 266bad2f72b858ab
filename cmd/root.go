package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/tanrenai/estimator/internal/dispatch"
	"github.com/ThatCatDev/tanrenai/estimator/internal/environment"
	"github.com/ThatCatDev/tanrenai/estimator/internal/handler"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/internal/server"
	"github.com/ThatCatDev/tanrenai/estimator/internal/training"
)

const usageLine = "tanrenai-estimator train|serve [flags]"

// newRootCmd builds the root command. cobra registers its completion
// commands on the instance it executes, so each run gets a fresh one.
func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   usageLine,
		Short: "Container entrypoint for training and serving an estimator",
		Long: `tanrenai-estimator is the entrypoint of a SageMaker-style container.

  train   resolve the training configuration from the job environment and
          command-line overrides, then run the training program
  serve   load the serving.handler inference handler and serve /ping and
          /invocations

Training flags: --max-depth, --n-jobs, --n-estimators, --train, --validation,
--model-dir, --output-dir. Unrecognized flags are ignored.`,
		// The dispatcher owns the whole argument list: the first argument is the
		// mode and unknown train flags must pass through untouched.
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		Args:               cobra.ArbitraryArgs,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		// cobra always adds a hidden __complete command; it inherits this hook.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd != cmd.Root() {
				return &dispatch.UsageError{Msg: dispatch.ModeUsage}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(cmd.ErrOrStderr())
			return newDispatcher(cmd.ErrOrStderr(), log).Run(cmd.Context(), args)
		},
	}
}

// newDispatcher builds the production wiring. Tests replace it.
var newDispatcher = func(out io.Writer, log *logrus.Logger) *dispatch.Dispatcher {
	// Loaded at most once; the trainer exports the same job description.
	env := environment.Once(environment.FromProcess())
	return &dispatch.Dispatcher{
		Environment: env,
		Trainer:     &training.ScriptEntrypoint{Environment: env, Log: log},
		Server:      &server.ModelServer{Registry: handler.DefaultRegistry(), Log: log},
		Output:      out,
		Log:         log,
	}
}

// Execute runs the root command with os.Args, cancelling on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	var usage *dispatch.UsageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usage):
		return 2
	default:
		return 1
	}
}

// PrintError writes err the way the CLI reports failures.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
	var usage *dispatch.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(w, "Usage: %s\n", usageLine)
	}
}
