// Package environment describes the training job the container was started
// for: CPU count, input channels, hosts and the output layout.
package environment

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ThatCatDev/tanrenai/estimator/internal/config"
)

// ErrChannelNotFound is returned when a named input channel was not
// configured for the job.
var ErrChannelNotFound = errors.New("input channel not found")

const defaultHost = "algo-1"

// Environment is the job description read once per process.
type Environment struct {
	NumCPUs          int
	NumGPUs          int
	ChannelInputDirs map[string]string
	ModelDir         string
	OutputDir        string
	OutputDataDir    string
	InputDir         string
	InputConfigDir   string
	CurrentHost      string
	Hosts            []string
	Hyperparameters  map[string]string
}

// Source produces an Environment. The dispatcher only calls Load in
// training mode.
type Source interface {
	Load() (*Environment, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*Environment, error)

// Load calls f.
func (f SourceFunc) Load() (*Environment, error) {
	return f()
}

// Static returns a Source that always yields env.
func Static(env *Environment) Source {
	return SourceFunc(func() (*Environment, error) { return env, nil })
}

// Once returns a Source that loads src on first use and replays that result,
// error included, on every later call.
func Once(src Source) Source {
	var (
		once sync.Once
		env  *Environment
		err  error
	)
	return SourceFunc(func() (*Environment, error) {
		once.Do(func() { env, err = src.Load() })
		return env, err
	})
}

// FromProcess returns the Source backed by the process environment and the
// job config files under the SageMaker base directory.
func FromProcess() Source {
	return SourceFunc(Load)
}

// processVars are the SM_* variables a job may set to override the defaults
// derived from the /opt/ml layout.
type processVars struct {
	NumCPUs       int    `env:"SM_NUM_CPUS"`
	NumGPUs       int    `env:"SM_NUM_GPUS" envDefault:"0"`
	Channels      string `env:"SM_CHANNELS"`
	ModelDir      string `env:"SM_MODEL_DIR"`
	OutputDir     string `env:"SM_OUTPUT_DIR"`
	OutputDataDir string `env:"SM_OUTPUT_DATA_DIR"`
	CurrentHost   string `env:"SM_CURRENT_HOST"`
	Hosts         string `env:"SM_HOSTS"`
}

// Load reads the environment of the current process.
func Load() (*Environment, error) {
	var vars processVars
	if err := config.ParseEnv(&vars); err != nil {
		return nil, err
	}

	env := &Environment{
		NumCPUs:          vars.NumCPUs,
		NumGPUs:          vars.NumGPUs,
		ChannelInputDirs: map[string]string{},
		ModelDir:         firstNonEmpty(vars.ModelDir, config.ModelDir()),
		OutputDir:        firstNonEmpty(vars.OutputDir, config.OutputDir()),
		OutputDataDir:    firstNonEmpty(vars.OutputDataDir, config.OutputDataDir()),
		InputDir:         config.InputDir(),
		InputConfigDir:   config.InputConfigDir(),
		Hyperparameters:  map[string]string{},
	}
	if env.NumCPUs <= 0 {
		env.NumCPUs = runtime.NumCPU()
	}

	channels, err := readInputDataConfig(env.InputConfigDir)
	if err != nil {
		return nil, err
	}
	if vars.Channels != "" {
		var listed []string
		if err := decodeJSON([]byte(vars.Channels), &listed); err != nil {
			return nil, fmt.Errorf("parse SM_CHANNELS: %w", err)
		}
		channels = append(channels, listed...)
	}
	for _, ch := range channels {
		env.ChannelInputDirs[ch] = config.ChannelDir(ch)
	}
	for ch, dir := range channelOverrides(os.Environ()) {
		env.ChannelInputDirs[ch] = dir
	}

	res, err := readResourceConfig(env.InputConfigDir)
	if err != nil {
		return nil, err
	}
	env.CurrentHost = firstNonEmpty(vars.CurrentHost, res.CurrentHost, defaultHost)
	env.Hosts = res.Hosts
	if vars.Hosts != "" {
		if err := decodeJSON([]byte(vars.Hosts), &env.Hosts); err != nil {
			return nil, fmt.Errorf("parse SM_HOSTS: %w", err)
		}
	}
	if len(env.Hosts) == 0 {
		env.Hosts = []string{env.CurrentHost}
	}

	hps, err := readHyperparameters(env.InputConfigDir)
	if err != nil {
		return nil, err
	}
	env.Hyperparameters = hps

	return env, nil
}

// Channel returns the directory of a named input channel.
func (e *Environment) Channel(name string) (string, error) {
	dir, ok := e.ChannelInputDirs[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (configured: %s)", ErrChannelNotFound, name, strings.Join(e.ChannelNames(), ", "))
	}
	return dir, nil
}

// ChannelNames returns the configured channel names in sorted order.
func (e *Environment) ChannelNames() []string {
	names := make([]string, 0, len(e.ChannelInputDirs))
	for name := range e.ChannelInputDirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMaster reports whether this host is the first host of the job.
func (e *Environment) IsMaster() bool {
	return len(e.Hosts) == 0 || e.Hosts[0] == e.CurrentHost
}

// channelOverrides collects SM_CHANNEL_<NAME>=<dir> pairs. Names are
// lower-cased the way SageMaker upper-cases them when exporting.
func channelOverrides(environ []string) map[string]string {
	const prefix = "SM_CHANNEL_"
	out := map[string]string{}
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || val == "" {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		if name == "" {
			continue
		}
		out[name] = val
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
