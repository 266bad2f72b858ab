package runner

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
)

const (
	defaultHealthTimeout = 120 * time.Second
	defaultHealthPath    = "/ping"
	stopGracePeriod      = 5 * time.Second
)

// Subprocess manages the lifecycle of a long-lived child process that
// exposes an HTTP health endpoint: start, health polling, and graceful
// shutdown.
type Subprocess struct {
	cmd  *exec.Cmd
	mu   sync.Mutex
	port int

	program       string
	args          []string
	env           []string
	dir           string
	label         string
	quiet         bool
	baseURL       string
	healthPath    string
	healthy       bool
	stopped       bool          // true after GracefulStop
	doneCh        chan struct{} // closed when the process exits
	healthTimeout time.Duration
	log           logrus.FieldLogger
}

// SubprocessConfig holds everything needed to start a subprocess.
type SubprocessConfig struct {
	Program       string
	Args          []string // args after the program path; --port is appended
	Env           []string // extra KEY=VALUE pairs on top of os.Environ()
	Dir           string   // working directory, empty for the current one
	Port          int      // 0 = auto-allocate
	Label         string   // log field, defaults to the program base name
	Quiet         bool     // discard child stdout/stderr
	HealthPath    string   // default /ping
	HealthTimeout time.Duration
	Log           logrus.FieldLogger
}

// allocatePort finds a free TCP port by binding to :0 and releasing it.
func allocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port, nil
}

// NewSubprocess creates a Subprocess but does not start it. Call Start next.
func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	program, err := resolveProgram(cfg.Program)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port, err = allocatePort()
		if err != nil {
			return nil, err
		}
	}

	label := cfg.Label
	if label == "" {
		label = labelFor(program)
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = defaultHealthPath
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = defaultHealthTimeout
	}

	return &Subprocess{
		program:       program,
		args:          cfg.Args,
		env:           append(os.Environ(), cfg.Env...),
		dir:           cfg.Dir,
		port:          port,
		label:         label,
		quiet:         cfg.Quiet,
		baseURL:       fmt.Sprintf("http://127.0.0.1:%d", port),
		healthPath:    healthPath,
		healthTimeout: healthTimeout,
		doneCh:        make(chan struct{}),
		log:           logging.OrDiscard(cfg.Log).WithField("label", label),
	}, nil
}

// Port returns the port the subprocess is listening on.
func (s *Subprocess) Port() int {
	return s.port
}

// BaseURL returns the HTTP base URL of the subprocess.
func (s *Subprocess) BaseURL() string {
	return s.baseURL
}

// Healthy returns whether the subprocess last passed a health check.
func (s *Subprocess) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// Start launches the subprocess and waits for it to become healthy.
// ctx bounds only the health wait; the child runs until GracefulStop.
func (s *Subprocess) Start(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = false
	s.healthy = false
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	args := withPort(s.args, s.port)

	s.cmd = exec.Command(s.program, args...)
	s.cmd.Env = s.env
	s.cmd.Dir = s.dir
	flush := func() {}
	if s.quiet {
		s.cmd.Stdout = io.Discard
		s.cmd.Stderr = io.Discard
	} else {
		flush = pipeOutput(s.cmd, s.log)
	}

	s.log.WithField("port", s.port).Infof("starting %s", s.program)

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", s.label, err)
	}

	doneCh := s.doneCh
	go func() {
		s.cmd.Wait()
		flush()
		close(doneCh)
	}()

	if err := s.waitForHealth(ctx); err != nil {
		s.GracefulStop()
		return fmt.Errorf("%s failed to become healthy: %w", s.label, err)
	}

	s.mu.Lock()
	s.healthy = true
	s.mu.Unlock()

	s.log.WithField("port", s.port).Info("ready")
	return nil
}

// Done returns a channel that is closed when the subprocess exits.
func (s *Subprocess) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneCh
}

// Exited reports whether the process has exited.
func (s *Subprocess) Exited() bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

// ExitCode returns the process exit code, or -1 if not yet exited.
func (s *Subprocess) ExitCode() int {
	if s.cmd == nil || s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// GracefulStop sends SIGTERM, waits up to 5 seconds, then SIGKILL.
func (s *Subprocess) GracefulStop() error {
	s.mu.Lock()
	s.stopped = true
	s.healthy = false
	s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	pid := s.cmd.Process.Pid
	log := s.log.WithField("pid", pid)
	log.Debug("sending SIGTERM")

	if err := interrupt(s.cmd.Process); err != nil {
		log.WithError(err).Debug("signal failed, process may have exited")
		return nil
	}

	select {
	case <-s.doneCh:
		log.Debug("process exited cleanly")
		return nil
	case <-time.After(stopGracePeriod):
		log.Warn("process did not exit after SIGTERM, sending SIGKILL")
		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill %s: %w", s.label, err)
		}
		<-s.doneCh
		return nil
	}
}

// WasStopped returns true if GracefulStop was called.
func (s *Subprocess) WasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// HealthCheck performs a single GET against the health path.
func (s *Subprocess) HealthCheck(ctx context.Context) error {
	if s.Exited() {
		return fmt.Errorf("%s exited (exit code %d)", s.label, s.ExitCode())
	}
	return s.healthCheck(ctx)
}

// waitForHealth polls the health path until it returns 200.
func (s *Subprocess) waitForHealth(ctx context.Context) error {
	deadline := time.Now().Add(s.healthTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	progressTicker := time.NewTicker(5 * time.Second)
	defer progressTicker.Stop()

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.doneCh:
			return fmt.Errorf("%s exited during startup (exit code %d)", s.label, s.ExitCode())
		case <-progressTicker.C:
			s.log.Infof("still starting... (%.0fs elapsed)", time.Since(start).Seconds())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for %s to become ready after %s", s.label, s.healthTimeout)
			}
			if s.healthCheck(ctx) == nil {
				return nil
			}
		}
	}
}

func (s *Subprocess) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+s.healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// withPort returns a copy of args with --port set to port.
func withPort(in []string, port int) []string {
	args := make([]string, len(in))
	copy(args, in)
	for i, a := range args {
		if a == "--port" && i+1 < len(args) {
			args[i+1] = strconv.Itoa(port)
			return args
		}
	}
	return append(args, "--port", strconv.Itoa(port))
}

func interrupt(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Signal(os.Interrupt)
	}
	return p.Signal(syscall.SIGTERM)
}

// pipeOutput streams the child's stdout and stderr through log, one entry
// per line.
func pipeOutput(cmd *exec.Cmd, log logrus.FieldLogger) (flush func()) {
	stdout := newLineWriter(log.WithField("stream", "stdout"))
	stderr := newLineWriter(log.WithField("stream", "stderr"))
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return func() {
		stdout.Flush()
		stderr.Flush()
	}
}
