package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port int    `env:"ESTIMATOR_TEST_PORT" envDefault:"8080"`
	Dir  string `env:"ESTIMATOR_TEST_DIR"`
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

func TestBaseDirDefault(t *testing.T) {
	unsetEnv(t, "SAGEMAKER_BASE_DIR")
	assert.Equal(t, DefaultBaseDir, BaseDir())
	assert.Equal(t, filepath.Join(DefaultBaseDir, "model"), ModelDir())
	assert.Equal(t, filepath.Join(DefaultBaseDir, "input", "data", "train"), ChannelDir("train"))
}

func TestBaseDirOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("SAGEMAKER_BASE_DIR", base)

	assert.Equal(t, filepath.Join(base, "output"), OutputDir())
	assert.Equal(t, filepath.Join(base, "output", "data"), OutputDataDir())
	assert.Equal(t, filepath.Join(base, "input", "config"), InputConfigDir())
}

func TestParseEnvReadsValues(t *testing.T) {
	t.Setenv("ESTIMATOR_TEST_PORT", "9090")
	t.Setenv("ESTIMATOR_TEST_DIR", "/from/env")

	var cfg testConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/from/env", cfg.Dir)
}

func TestParseEnvWrapsErrors(t *testing.T) {
	t.Setenv("ESTIMATOR_TEST_PORT", "not-a-port")

	var cfg testConfig
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
