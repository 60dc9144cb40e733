// Package process implements the process-host supervisor variant:
// spawning executables, streaming their logs, restarting them under a
// configured policy, and cooperative termination (spec §4.F).
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newrelic/agent-control/internal/agenttype"
	"github.com/newrelic/agent-control/internal/health"
	"github.com/newrelic/agent-control/internal/supervisor"
)

// LogLine is one line of stdout/stderr from a supervised executable.
type LogLine struct {
	Executable string
	Stream     string
	Text       string
	Time       time.Time
}

// Supervisor is the process-variant implementation of
// supervisor.Supervisor.
type Supervisor struct {
	RestartPolicy func() RestartPolicy
	StopGrace     time.Duration
	Logs          chan<- LogLine
	Log           *logrus.Entry
}

// New builds a process Supervisor. restartPolicy is a factory so every
// started executable gets its own attempt counter.
func New(restartPolicy func() RestartPolicy, stopGrace time.Duration, logs chan<- LogLine, log *logrus.Entry) *Supervisor {
	return &Supervisor{RestartPolicy: restartPolicy, StopGrace: stopGrace, Logs: logs, Log: log}
}

func (s *Supervisor) Start(ctx context.Context, artifacts agenttype.DeploymentArtifacts) (supervisor.StartedHandle, error) {
	if artifacts.Process == nil {
		return nil, fmt.Errorf("process supervisor: no process artifacts")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		stopGrace: s.StopGrace,
		startTime: time.Now(),
		health:    health.Healthy("starting", time.Now()),
	}
	h.health = h.health.WithStartTime(h.startTime)

	h.wg.Add(len(artifacts.Process.Executables))
	for _, exe := range artifacts.Process.Executables {
		exe := exe
		go s.runWithRestart(runCtx, h, exe)
	}
	return h, nil
}

func (s *Supervisor) runWithRestart(ctx context.Context, h *Handle, exe agenttype.ExecutableArtifact) {
	defer h.wg.Done()
	policy := s.RestartPolicy()

	for attempt := 1; ; attempt++ {
		select {
		case <-h.stopCh:
			return
		default:
		}

		cmd := exec.CommandContext(ctx, exe.Path, exe.Args...)
		cmd.Env = os.Environ()
		for k, v := range exe.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}

		if err := s.runOnce(ctx, h, exe.Path, cmd); err != nil {
			h.setUnhealthy(fmt.Sprintf("executable %s exited", exe.Path), err)
		} else {
			return
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case <-h.stopCh:
			// Stop already signalled this exit; do not race it with a
			// fresh, unsignalled process.
			return
		default:
		}
		if !policy.Allow(attempt) {
			h.setUnhealthy(fmt.Sprintf("executable %s: restart attempts exhausted", exe.Path),
				fmt.Errorf("max retries reached after %d attempts", attempt))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-time.After(policy.Delay()):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context, h *Handle, name string, cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	h.trackProcess(cmd)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.streamLog(&wg, name, "stdout", stdout)
	go s.streamLog(&wg, name, "stderr", stderr)
	wg.Wait()

	return cmd.Wait()
}

func (s *Supervisor) streamLog(wg *sync.WaitGroup, exe, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := LogLine{Executable: exe, Stream: stream, Text: scanner.Text(), Time: time.Now()}
		select {
		case s.Logs <- line:
		default:
			if s.Log != nil {
				s.Log.WithField("executable", exe).Warn("log channel full, dropping line")
			}
		}
	}
}

// Handle is the running instance of all of one sub-agent's
// executables.
type Handle struct {
	mu        sync.Mutex
	cancel    context.CancelFunc
	cmds      []*exec.Cmd
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopCh    chan struct{}
	stopGrace time.Duration
	startTime time.Time
	health    health.Health
	version   string
}

func (h *Handle) trackProcess(cmd *exec.Cmd) {
	h.mu.Lock()
	h.cmds = append(h.cmds, cmd)
	h.mu.Unlock()
}

func (h *Handle) setUnhealthy(status string, err error) {
	h.mu.Lock()
	h.health = health.Unhealthy(status, err, time.Now()).WithStartTime(h.startTime)
	h.mu.Unlock()
}

// Stop sends SIGTERM to every tracked process, waits up to stopGrace,
// then escalates to SIGKILL for any still running (spec §4.F
// "cooperative: send SIGTERM ... escalate to SIGKILL"). stopCh is
// closed before signalling so runWithRestart cannot relaunch a process
// that exits because of this SIGTERM/SIGKILL — otherwise the fresh
// process would be absent from the cmds snapshot below and h.wg would
// never complete.
func (h *Handle) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopCh) })

	h.mu.Lock()
	cmds := append([]*exec.Cmd(nil), h.cmds...)
	h.mu.Unlock()

	for _, cmd := range cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(h.stopGrace):
		for _, cmd := range cmds {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
		<-done
	}

	h.cancel()
	return nil
}

func (h *Handle) CheckHealth(ctx context.Context) health.Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.health
}

// CheckVersion is not meaningful for a raw process supervisor unless
// the executable exposes a version probe. This supervisor never sets
// h.version, so CheckVersion reports ok=false (spec §4.F only mandates
// version extraction for the Kubernetes variant's object status).
func (h *Handle) CheckVersion(ctx context.Context) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version, h.version != ""
}
