// Package runner starts and supervises the user programs the container
// delegates to: the training program and the inference handler.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
)

// ExitError reports a program that ran and exited non-zero.
type ExitError struct {
	Label    string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Label, e.ExitCode)
}

// RunConfig describes a program run to completion.
type RunConfig struct {
	Program string
	Args    []string
	Env     []string // extra KEY=VALUE pairs on top of os.Environ()
	Dir     string
	Label   string
	Log     logrus.FieldLogger
}

// Run starts the program, streams its output through the logger and waits
// for it to exit. Cancelling ctx sends SIGTERM, then SIGKILL after a grace
// period, and Run returns ctx.Err().
func Run(ctx context.Context, cfg RunConfig) error {
	program, err := resolveProgram(cfg.Program)
	if err != nil {
		return err
	}
	label := cfg.Label
	if label == "" {
		label = labelFor(program)
	}
	log := logging.OrDiscard(cfg.Log).WithField("label", label)

	cmd := exec.CommandContext(ctx, program, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Dir = cfg.Dir
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = stopGracePeriod
	flush := pipeOutput(cmd, log)

	log.WithField("args", cfg.Args).Infof("running %s", program)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", label, err)
	}
	err = cmd.Wait()
	flush()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Label: label, ExitCode: exitErr.ExitCode()}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("finished")
	return nil
}

// resolveProgram checks that path names an existing regular file and returns
// its absolute form.
func resolveProgram(path string) (string, error) {
	if path == "" {
		return "", errors.New("no program configured")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("program not found at %s", abs)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("program %s is not a regular file", abs)
	}
	return abs, nil
}

func labelFor(program string) string {
	return filepath.Base(program)
}
