package environment

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jobLayout points SAGEMAKER_BASE_DIR at a temp dir and clears the SM_*
// variables a developer shell might carry.
func jobLayout(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("SAGEMAKER_BASE_DIR", base)
	unsetEnv(t,
		"SM_NUM_CPUS", "SM_NUM_GPUS", "SM_CHANNELS", "SM_MODEL_DIR",
		"SM_OUTPUT_DIR", "SM_OUTPUT_DATA_DIR", "SM_CURRENT_HOST", "SM_HOSTS",
		"SM_CHANNEL_TRAIN", "SM_CHANNEL_VALIDATION",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "input", "config"), 0755))
	return base
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, prev) })
		}
		os.Unsetenv(key)
	}
}

func writeJobFile(t *testing.T, base, name, body string) {
	t.Helper()
	path := filepath.Join(base, "input", "config", name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestLoadDefaultsWithoutJobConfig(t *testing.T) {
	base := jobLayout(t)

	env, err := Load()
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), env.NumCPUs)
	assert.Equal(t, 0, env.NumGPUs)
	assert.Equal(t, filepath.Join(base, "model"), env.ModelDir)
	assert.Equal(t, filepath.Join(base, "output"), env.OutputDir)
	assert.Equal(t, filepath.Join(base, "output", "data"), env.OutputDataDir)
	assert.Empty(t, env.ChannelInputDirs)
	assert.Equal(t, "algo-1", env.CurrentHost)
	assert.Equal(t, []string{"algo-1"}, env.Hosts)
	assert.True(t, env.IsMaster())
}

func TestLoadReadsJobConfigFiles(t *testing.T) {
	base := jobLayout(t)
	writeJobFile(t, base, "inputdataconfig.json", `{
		"train": {"ContentType": "text/csv", "TrainingInputMode": "File"},
		"validation": {"ContentType": "text/csv", "TrainingInputMode": "File"}
	}`)
	writeJobFile(t, base, "resourceconfig.json", `{"current_host": "algo-2", "hosts": ["algo-1", "algo-2"]}`)
	writeJobFile(t, base, "hyperparameters.json", `{"max-depth": "5", "n-estimators": 200}`)

	env, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"train":      filepath.Join(base, "input", "data", "train"),
		"validation": filepath.Join(base, "input", "data", "validation"),
	}, env.ChannelInputDirs)
	assert.Equal(t, []string{"train", "validation"}, env.ChannelNames())
	assert.Equal(t, "algo-2", env.CurrentHost)
	assert.Equal(t, []string{"algo-1", "algo-2"}, env.Hosts)
	assert.False(t, env.IsMaster())
	assert.Equal(t, map[string]string{"max-depth": "5", "n-estimators": "200"}, env.Hyperparameters)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	base := jobLayout(t)
	writeJobFile(t, base, "inputdataconfig.json", `{"train": {}}`)
	t.Setenv("SM_NUM_CPUS", "4")
	t.Setenv("SM_MODEL_DIR", "/opt/model")
	t.Setenv("SM_OUTPUT_DIR", "/opt/output")
	t.Setenv("SM_CHANNEL_TRAIN", "/data/train")
	t.Setenv("SM_CHANNEL_VALIDATION", "/data/val")
	t.Setenv("SM_CHANNELS", `["test"]`)
	t.Setenv("SM_HOSTS", `["algo-1"]`)

	env, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, env.NumCPUs)
	assert.Equal(t, "/opt/model", env.ModelDir)
	assert.Equal(t, "/opt/output", env.OutputDir)
	assert.Equal(t, map[string]string{
		"train":      "/data/train",
		"validation": "/data/val",
		"test":       filepath.Join(base, "input", "data", "test"),
	}, env.ChannelInputDirs)
	assert.Equal(t, []string{"algo-1"}, env.Hosts)
}

func TestLoadRejectsMalformedJobConfig(t *testing.T) {
	base := jobLayout(t)
	writeJobFile(t, base, "inputdataconfig.json", `{not json`)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputdataconfig.json")
}

func TestLoadRejectsMalformedChannelList(t *testing.T) {
	jobLayout(t)
	t.Setenv("SM_CHANNELS", "train,validation")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SM_CHANNELS")
}

func TestChannelNotFound(t *testing.T) {
	env := &Environment{ChannelInputDirs: map[string]string{"train": "/data/train"}}

	dir, err := env.Channel("train")
	require.NoError(t, err)
	assert.Equal(t, "/data/train", dir)

	_, err = env.Channel("validation")
	require.ErrorIs(t, err, ErrChannelNotFound)
	assert.Contains(t, err.Error(), `"validation"`)
}

func TestStaticSource(t *testing.T) {
	want := &Environment{NumCPUs: 2}
	got, err := Static(want).Load()
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestOnceLoadsOnce(t *testing.T) {
	calls := 0
	src := Once(SourceFunc(func() (*Environment, error) {
		calls++
		return &Environment{NumCPUs: calls}, nil
	}))

	first, err := src.Load()
	require.NoError(t, err)
	second, err := src.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestOnceReplaysError(t *testing.T) {
	calls := 0
	boom := errors.New("hyperparameters.json: unexpected EOF")
	src := Once(SourceFunc(func() (*Environment, error) {
		calls++
		return nil, boom
	}))

	_, err := src.Load()
	require.ErrorIs(t, err, boom)
	_, err = src.Load()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
