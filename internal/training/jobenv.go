package training

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ThatCatDev/tanrenai/estimator/internal/environment"
)

// jobEnv is the SM_TRAINING_ENV document: the whole job description in one
// JSON value for programs that prefer it to individual variables.
type jobEnv struct {
	ChannelInputDirs map[string]string `json:"channel_input_dirs"`
	CurrentHost      string            `json:"current_host"`
	Hosts            []string          `json:"hosts"`
	IsMaster         bool              `json:"is_master"`
	Hyperparameters  map[string]string `json:"hyperparameters"`
	InputDir         string            `json:"input_dir"`
	InputConfigDir   string            `json:"input_config_dir"`
	ModelDir         string            `json:"model_dir"`
	OutputDir        string            `json:"output_dir"`
	OutputDataDir    string            `json:"output_data_dir"`
	NumCPUs          int               `json:"num_cpus"`
	NumGPUs          int               `json:"num_gpus"`
}

// programEnv exports the config the way SageMaker exposes it to user
// scripts, so programs that read SM_* variables see the resolved values.
// Values resolved into cfg take precedence over the job description.
func programEnv(cfg Config, job *environment.Environment) ([]string, error) {
	channels := map[string]string{}
	hps := map[string]string{}
	if job != nil {
		for name, dir := range job.ChannelInputDirs {
			channels[name] = dir
		}
		for name, val := range job.Hyperparameters {
			hps[name] = val
		}
	}
	channels["train"] = cfg.Train
	channels["validation"] = cfg.Validation
	for name, val := range cfg.Hyperparameters() {
		hps[name] = val
	}

	encodedHPs, err := json.Marshal(hps)
	if err != nil {
		return nil, fmt.Errorf("encode hyperparameters: %w", err)
	}
	out := []string{
		"SM_MODEL_DIR=" + cfg.ModelDir,
		"SM_OUTPUT_DIR=" + cfg.OutputDir,
		"SM_NUM_CPUS=" + strconv.Itoa(cfg.NJobs),
		"SM_HPS=" + string(encodedHPs),
	}
	for _, name := range sortedKeys(channels) {
		out = append(out, "SM_CHANNEL_"+envName(name)+"="+channels[name])
	}
	for _, name := range sortedKeys(hps) {
		out = append(out, "SM_HP_"+envName(name)+"="+hps[name])
	}

	if job == nil {
		return out, nil
	}

	names := sortedKeys(channels)
	encodedChannels, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode channels: %w", err)
	}
	encodedHosts, err := json.Marshal(job.Hosts)
	if err != nil {
		return nil, fmt.Errorf("encode hosts: %w", err)
	}
	trainingEnv, err := json.Marshal(jobEnv{
		ChannelInputDirs: channels,
		CurrentHost:      job.CurrentHost,
		Hosts:            job.Hosts,
		IsMaster:         job.IsMaster(),
		Hyperparameters:  hps,
		InputDir:         job.InputDir,
		InputConfigDir:   job.InputConfigDir,
		ModelDir:         cfg.ModelDir,
		OutputDir:        cfg.OutputDir,
		OutputDataDir:    job.OutputDataDir,
		NumCPUs:          cfg.NJobs,
		NumGPUs:          job.NumGPUs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode training environment: %w", err)
	}

	return append(out,
		"SM_CHANNELS="+string(encodedChannels),
		"SM_CURRENT_HOST="+job.CurrentHost,
		"SM_HOSTS="+string(encodedHosts),
		"SM_NUM_GPUS="+strconv.Itoa(job.NumGPUs),
		"SM_OUTPUT_DATA_DIR="+job.OutputDataDir,
		"SM_INPUT_DIR="+job.InputDir,
		"SM_INPUT_CONFIG_DIR="+job.InputConfigDir,
		"SM_TRAINING_ENV="+string(trainingEnv),
	), nil
}

// envName upper-cases name and maps characters that are awkward in shell
// variable names to underscores.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
