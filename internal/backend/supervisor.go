package backend

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"camshell/internal/config"
)

var logger = log.New(os.Stderr, "[backend] ", log.LstdFlags)

type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Supervisor owns the backend subprocess. At most one instance is supervised
// per shell session; Start is idempotent while a child is alive.
type Supervisor struct {
	mu  sync.Mutex
	cfg *config.Config

	state    State
	cmd      *exec.Cmd
	pid      int
	exitCode *int
	done     chan struct{}

	resolved *Invocation
}

func NewSupervisor(cfg *config.Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// ExitCode returns the last recorded exit code, or nil while the child is
// alive or was never started.
func (s *Supervisor) ExitCode() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

func (s *Supervisor) Start() error {
	s.mu.Lock()
	// Stopping counts too: the old child is still alive until its exit is
	// observed, and at most one supervised instance may exist.
	if s.state == StateStarting || s.state == StateRunning || s.state == StateStopping {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	inv, err := s.Resolve()
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return err
	}

	s.logAssets(inv)

	cmd := exec.Command(inv.Path, inv.Args...)
	// Stdin stays nil so the child reads /dev/null. Output carries no
	// control protocol, it is relayed to the log and nothing else.
	cmd.Stdout = &lineWriter{name: "stdout"}
	cmd.Stderr = &lineWriter{name: "stderr"}

	logger.Printf("starting backend: %s %s", inv.Path, strings.Join(inv.Args, " "))

	if err := cmd.Start(); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("spawning backend: %w", err)
	}

	done := make(chan struct{})

	s.mu.Lock()
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.exitCode = nil
	s.done = done
	s.state = StateRunning
	s.mu.Unlock()

	logger.Printf("backend running, pid %d", cmd.Process.Pid)

	// Waiter: exactly one terminal event per spawned child.
	go func() {
		err := cmd.Wait()

		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
			logger.Printf("backend exited: %v", err)
		} else {
			logger.Printf("backend exited cleanly")
		}

		s.mu.Lock()
		s.exitCode = &code
		s.state = StateStopped
		s.cmd = nil
		s.mu.Unlock()

		close(done)
	}()

	return nil
}

// Stop sends a graceful signal, waits the configured grace period and then
// kills. A child that exits on its own between the two steps is not an error.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning || s.cmd == nil {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	proc := s.cmd.Process
	done := s.done
	grace := s.cfg.ShutdownGrace
	s.mu.Unlock()

	logger.Printf("stopping backend, pid %d", proc.Pid)
	_ = proc.Signal(syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		logger.Printf("backend did not exit within %s, killing", grace)
		_ = proc.Kill()
		<-done
	}

	return nil
}

// logAssets records what the backend will find next to its entrypoint.
// Diagnostics only, a missing directory must not block startup.
func (s *Supervisor) logAssets(inv *Invocation) {
	dir := filepath.Dir(inv.Path)
	if s.cfg.Mode == config.ModeDev {
		dir = filepath.Dir(s.cfg.Dev.Script)
	}

	modelsDir := filepath.Join(dir, "models")
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		logger.Printf("no models directory at %s: %v", modelsDir, err)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	logger.Printf("models directory %s: %s", modelsDir, strings.Join(names, ", "))
}

// lineWriter relays a child stream to the log one line at a time.
type lineWriter struct {
	name string
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)

	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, keep it for the next write.
			w.buf.WriteString(line)
			break
		}
		logger.Printf("%s: %s", w.name, strings.TrimRight(line, "\r\n"))
	}

	return len(p), nil
}
