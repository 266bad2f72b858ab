package config

import (
	"os"
	"path/filepath"
)

// DefaultBaseDir is the root of the container layout SageMaker mounts.
const DefaultBaseDir = "/opt/ml"

// DefaultCodeDir is where the user's training program and handlers live.
const DefaultCodeDir = "/opt/ml/code"

// BaseDir returns the root of the /opt/ml layout.
// SAGEMAKER_BASE_DIR overrides it for local runs.
func BaseDir() string {
	if dir := os.Getenv("SAGEMAKER_BASE_DIR"); dir != "" {
		return dir
	}
	return DefaultBaseDir
}

// ModelDir returns the directory training writes model artifacts to.
func ModelDir() string {
	return filepath.Join(BaseDir(), "model")
}

// OutputDir returns the directory for failure reports and run records.
func OutputDir() string {
	return filepath.Join(BaseDir(), "output")
}

// OutputDataDir returns the directory for non-model training output.
func OutputDataDir() string {
	return filepath.Join(OutputDir(), "data")
}

// InputDir returns the input root.
func InputDir() string {
	return filepath.Join(BaseDir(), "input")
}

// InputConfigDir returns the directory holding the job's JSON config files.
func InputConfigDir() string {
	return filepath.Join(InputDir(), "config")
}

// InputDataDir returns the directory holding one subdirectory per channel.
func InputDataDir() string {
	return filepath.Join(InputDir(), "data")
}

// ChannelDir returns the default path of a named input channel.
func ChannelDir(channel string) string {
	return filepath.Join(InputDataDir(), channel)
}
