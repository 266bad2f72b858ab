package training

import (
	"strconv"
	"time"
)

// Config is the resolved training configuration handed to the training
// program. It is built once per process and passed by value.
type Config struct {
	MaxDepth    int    `json:"max_depth"`
	NJobs       int    `json:"n_jobs"`
	NEstimators int    `json:"n_estimators"`
	Train       string `json:"train"`
	Validation  string `json:"validation"`
	ModelDir    string `json:"model_dir"`
	OutputDir   string `json:"output_dir"`
}

// Defaults that do not come from the environment.
const (
	DefaultMaxDepth    = 10
	DefaultNEstimators = 120
)

// Args renders the config as command-line flags in a fixed order.
func (c Config) Args() []string {
	return []string{
		"--max-depth", strconv.Itoa(c.MaxDepth),
		"--n-jobs", strconv.Itoa(c.NJobs),
		"--n-estimators", strconv.Itoa(c.NEstimators),
		"--train", c.Train,
		"--validation", c.Validation,
		"--model-dir", c.ModelDir,
		"--output-dir", c.OutputDir,
	}
}

// Hyperparameters returns the numeric settings keyed by flag name.
func (c Config) Hyperparameters() map[string]string {
	return map[string]string{
		"max-depth":    strconv.Itoa(c.MaxDepth),
		"n-jobs":       strconv.Itoa(c.NJobs),
		"n-estimators": strconv.Itoa(c.NEstimators),
	}
}

// RunStatus represents the state of a training run.
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusTraining RunStatus = "training"
	StatusDone     RunStatus = "done"
	StatusFailed   RunStatus = "failed"
)

// TrainingRun records one invocation of the training program.
type TrainingRun struct {
	ID        string    `json:"id"`
	Program   string    `json:"program"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Config    Config    `json:"config"`
	Duration  string    `json:"duration,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Error     string    `json:"error,omitempty"`
}
