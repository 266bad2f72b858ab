package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/internal/runner"
)

// backend is the running handler program.
type backend interface {
	BaseURL() string
	HealthCheck(ctx context.Context) error
	GracefulStop() error
}

// ProcessHandler runs the handler program named by the identifier as a
// child process and proxies requests to its HTTP endpoints.
type ProcessHandler struct {
	name    string
	program string
	hc      Context
	log     logrus.FieldLogger
	client  *http.Client

	backend backend
}

// NewProcessHandler is the Factory for process-backed handlers.
func NewProcessHandler(hc Context) (Handler, error) {
	if hc.CodeDir == "" {
		return nil, errors.New("no code directory configured")
	}
	return &ProcessHandler{
		name:    hc.Name,
		program: ProgramPath(hc.CodeDir, hc.Name),
		hc:      hc,
		log:     logging.OrDiscard(hc.Log).WithField("handler", hc.Name),
		client:  &http.Client{},
	}, nil
}

// ProgramPath maps a dotted identifier to an executable under codeDir:
// "serving.handler" becomes <codeDir>/serving/handler.
func ProgramPath(codeDir, name string) string {
	return filepath.Join(codeDir, filepath.FromSlash(strings.ReplaceAll(name, ".", "/")))
}

// Program returns the resolved executable path.
func (h *ProcessHandler) Program() string {
	return h.program
}

// Load starts the handler program and waits for its /ping to succeed.
func (h *ProcessHandler) Load(ctx context.Context) error {
	sub, err := runner.NewSubprocess(runner.SubprocessConfig{
		Program:       h.program,
		Args:          []string{"--model-dir", h.hc.ModelDir},
		Env:           []string{"SM_MODEL_DIR=" + h.hc.ModelDir},
		Dir:           h.hc.CodeDir,
		Label:         h.name,
		HealthPath:    "/ping",
		HealthTimeout: h.hc.StartupTimeout,
		Log:           h.log,
	})
	if err != nil {
		return fmt.Errorf("handler %s: %w", h.name, err)
	}
	if err := sub.Start(ctx); err != nil {
		return err
	}
	h.backend = sub
	return nil
}

// Ping checks the handler program's health endpoint.
func (h *ProcessHandler) Ping(ctx context.Context) error {
	if h.backend == nil {
		return errors.New("handler not loaded")
	}
	return h.backend.HealthCheck(ctx)
}

// Invoke forwards the request to the program's /invocations endpoint. Non-2xx
// answers from the program are returned as responses, not errors.
func (h *ProcessHandler) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if h.backend == nil {
		return nil, errors.New("handler not loaded")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.backend.BaseURL()+"/invocations", bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.ID != "" {
		httpReq.Header.Set("X-Request-Id", req.ID)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", h.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", h.name, err)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Close stops the handler program.
func (h *ProcessHandler) Close() error {
	if h.backend == nil {
		return nil
	}
	return h.backend.GracefulStop()
}
