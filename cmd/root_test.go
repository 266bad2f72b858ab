package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThatCatDev/tanrenai/estimator/internal/dispatch"
	"github.com/ThatCatDev/tanrenai/estimator/internal/environment"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/internal/server"
	"github.com/ThatCatDev/tanrenai/estimator/internal/training"
)

type recordingTrainer struct{ calls []training.Config }

func (r *recordingTrainer) Start(ctx context.Context, cfg training.Config) error {
	r.calls = append(r.calls, cfg)
	return nil
}

type recordingServer struct{ calls []string }

func (r *recordingServer) StartModelServer(ctx context.Context, handlerService string) error {
	r.calls = append(r.calls, handlerService)
	return nil
}

// withFakes swaps the production wiring for recording collaborators.
func withFakes(t *testing.T) (*recordingTrainer, *recordingServer) {
	t.Helper()
	tr := &recordingTrainer{}
	srv := &recordingServer{}
	prev := newDispatcher
	newDispatcher = func(out io.Writer, log *logrus.Logger) *dispatch.Dispatcher {
		return &dispatch.Dispatcher{
			Environment: environment.Static(&environment.Environment{
				NumCPUs:          4,
				ChannelInputDirs: map[string]string{"train": "/data/train", "validation": "/data/val"},
				ModelDir:         "/opt/model",
				OutputDir:        "/opt/output",
			}),
			Trainer: tr,
			Server:  srv,
			Output:  out,
			Log:     log,
		}
	}
	t.Cleanup(func() { newDispatcher = prev })
	return tr, srv
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	return root.ExecuteContext(context.Background())
}

func TestRootPassesFlagsThroughToTrain(t *testing.T) {
	tr, srv := withFakes(t)

	require.NoError(t, execute(t, "train", "--max-depth", "5", "--foo", "bar"))

	require.Len(t, tr.calls, 1)
	assert.Equal(t, training.Config{
		MaxDepth:    5,
		NJobs:       4,
		NEstimators: 120,
		Train:       "/data/train",
		Validation:  "/data/val",
		ModelDir:    "/opt/model",
		OutputDir:   "/opt/output",
	}, tr.calls[0])
	assert.Empty(t, srv.calls)
}

func TestRootServe(t *testing.T) {
	tr, srv := withFakes(t)

	require.NoError(t, execute(t, "serve"))
	assert.Equal(t, []string{"serving.handler"}, srv.calls)
	assert.Empty(t, tr.calls)
}

func TestRootRejectsBadMode(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"--help"},
		{"help"},
		{"version"},
		{"completion"},
		{"completion", "bash"},
		{"__complete", ""},
		{"__complete", "train", "--max"},
		{"__completeNoDesc", "x"},
	} {
		tr, srv := withFakes(t)

		err := execute(t, args...)

		var usage *dispatch.UsageError
		require.ErrorAs(t, err, &usage, "args %q", args)
		assert.Equal(t, 2, ExitCode(err))
		assert.Empty(t, tr.calls)
		assert.Empty(t, srv.calls)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&dispatch.UsageError{Msg: "bad"}))
	assert.Equal(t, 1, ExitCode(errors.New("training: train exited with code 3")))
}

func TestPrintError(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	PrintError(&buf, &dispatch.UsageError{Msg: "invalid argument"})
	assert.Equal(t, "Error: invalid argument\nUsage: tanrenai-estimator train|serve [flags]\n", buf.String())

	buf.Reset()
	PrintError(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestProductionWiring(t *testing.T) {
	d := newDispatcher(io.Discard, logging.Discard())

	trainer, ok := d.Trainer.(*training.ScriptEntrypoint)
	require.True(t, ok)
	assert.NotNil(t, trainer.Environment)
	assert.NotNil(t, d.Environment)
	assert.IsType(t, &server.ModelServer{}, d.Server)
}
