// Package training runs the user's training program with a resolved Config.
package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/config"
	"github.com/ThatCatDev/tanrenai/estimator/internal/environment"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/internal/runner"
)

// FailureFile is written to the output directory when training fails. The
// platform surfaces its contents as the job's failure reason.
const FailureFile = "failure"

// Entrypoint starts training with a resolved configuration and blocks until
// it finishes.
type Entrypoint interface {
	Start(ctx context.Context, cfg Config) error
}

// ProgramConfig locates the training program.
type ProgramConfig struct {
	SubmitDir string `env:"SAGEMAKER_SUBMIT_DIRECTORY"`
	Program   string `env:"SAGEMAKER_PROGRAM" envDefault:"train"`
}

// LoadProgramConfig reads ProgramConfig from the environment.
func LoadProgramConfig() (ProgramConfig, error) {
	var pc ProgramConfig
	if err := config.ParseEnv(&pc); err != nil {
		return pc, err
	}
	if pc.SubmitDir == "" {
		pc.SubmitDir = config.DefaultCodeDir
	}
	if pc.Program == "" {
		pc.Program = "train"
	}
	return pc, nil
}

// Path returns the absolute path of the program.
func (pc ProgramConfig) Path() string {
	if filepath.IsAbs(pc.Program) {
		return pc.Program
	}
	return filepath.Join(pc.SubmitDir, pc.Program)
}

// ScriptEntrypoint runs the training program as a child process, once per
// Start call, and records the run under the output directory.
type ScriptEntrypoint struct {
	// Program overrides the environment-derived program location.
	Program *ProgramConfig
	// Environment supplies the job description exported to the program.
	// When nil only the values carried by Config are exported.
	Environment environment.Source
	Log         logrus.FieldLogger

	now func() time.Time
}

// Start implements Entrypoint.
func (e *ScriptEntrypoint) Start(ctx context.Context, cfg Config) error {
	pc, err := e.programConfig()
	if err != nil {
		return err
	}

	var job *environment.Environment
	if e.Environment != nil {
		if job, err = e.Environment.Load(); err != nil {
			return fmt.Errorf("load training environment: %w", err)
		}
	}

	for _, dir := range []string{cfg.ModelDir, cfg.OutputDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	store := NewRunStore(cfg.OutputDir)
	run := &TrainingRun{
		ID:        uuid.NewString(),
		Program:   pc.Path(),
		Status:    StatusPending,
		CreatedAt: e.clock(),
		Config:    cfg,
	}
	run.UpdatedAt = run.CreatedAt
	log := logging.OrDiscard(e.Log).WithField("run_id", run.ID)
	e.save(store, run, log)

	env, err := programEnv(cfg, job)
	if err != nil {
		return err
	}

	run.Status = StatusTraining
	run.UpdatedAt = e.clock()
	e.save(store, run, log)
	log.WithFields(logrus.Fields{
		"max_depth":    cfg.MaxDepth,
		"n_jobs":       cfg.NJobs,
		"n_estimators": cfg.NEstimators,
	}).Info("training started")

	runErr := runner.Run(ctx, runner.RunConfig{
		Program: pc.Path(),
		Args:    cfg.Args(),
		Env:     env,
		Dir:     pc.SubmitDir,
		Label:   "train",
		Log:     log,
	})

	finished := e.clock()
	run.UpdatedAt = finished
	run.Duration = finished.Sub(run.CreatedAt).Round(time.Millisecond).String()
	var exitErr *runner.ExitError
	if errors.As(runErr, &exitErr) {
		code := exitErr.ExitCode
		run.ExitCode = &code
	} else if runErr == nil {
		code := 0
		run.ExitCode = &code
	}

	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
		e.save(store, run, log)
		if err := WriteFailure(cfg.OutputDir, runErr); err != nil {
			log.WithError(err).Warn("could not write failure file")
		}
		log.WithError(runErr).Error("training failed")
		return fmt.Errorf("training: %w", runErr)
	}

	run.Status = StatusDone
	e.save(store, run, log)
	log.WithField("duration", run.Duration).Info("training finished")
	return nil
}

// WriteFailure records err as the job failure reason in outputDir.
func WriteFailure(outputDir string, err error) error {
	if outputDir == "" {
		return errors.New("no output directory")
	}
	path := filepath.Join(outputDir, FailureFile)
	return os.WriteFile(path, []byte(err.Error()+"\n"), 0644)
}

func (e *ScriptEntrypoint) programConfig() (ProgramConfig, error) {
	if e.Program != nil {
		return *e.Program, nil
	}
	return LoadProgramConfig()
}

// save persists the run record. The record is informational; failing to
// write it does not fail training.
func (e *ScriptEntrypoint) save(store *RunStore, run *TrainingRun, log logrus.FieldLogger) {
	if err := store.Save(run); err != nil {
		log.WithError(err).Warn("could not save run record")
	}
}

func (e *ScriptEntrypoint) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}
