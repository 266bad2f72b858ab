package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log, &buf
}

func TestRunSucceeds(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "args.txt")
	path := writeScript(t, dir, "train", `echo "$@" > "`+out+`"
echo "model dir is $SM_MODEL_DIR"
echo "to stderr" 1>&2
`)
	log, buf := bufferLogger()

	err := Run(context.Background(), RunConfig{
		Program: path,
		Args:    []string{"--max-depth", "10"},
		Env:     []string{"SM_MODEL_DIR=/opt/model"},
		Log:     log,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "--max-depth 10\n", string(got))
	assert.Contains(t, buf.String(), "model dir is /opt/model")
	assert.Contains(t, buf.String(), "to stderr")
	assert.Contains(t, buf.String(), "label=train")
}

func TestRunReportsExitCode(t *testing.T) {
	path := writeScript(t, t.TempDir(), "train", "exit 7\n")

	err := Run(context.Background(), RunConfig{Program: path})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.ExitCode)
	assert.Equal(t, "train exited with code 7", exitErr.Error())
}

func TestRunMissingProgram(t *testing.T) {
	err := Run(context.Background(), RunConfig{Program: filepath.Join(t.TempDir(), "train")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program not found")
}

func TestRunCancelled(t *testing.T) {
	path := writeScript(t, t.TempDir(), "train", "exec sleep 60\n")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Run(ctx, RunConfig{Program: path})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLineWriterSplitsLines(t *testing.T) {
	log, buf := bufferLogger()
	w := newLineWriter(log)

	w.Write([]byte("first\nsec"))
	w.Write([]byte("ond\nthird"))
	assert.Contains(t, buf.String(), "msg=first")
	assert.Contains(t, buf.String(), "msg=second")
	assert.NotContains(t, buf.String(), "third")

	w.Flush()
	assert.Contains(t, buf.String(), "msg=third")
}
