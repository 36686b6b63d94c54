// Package pipeline launches and tears down the chain of background
// processes backing one desktop session: a virtual framebuffer, a
// window manager, the application, a VNC server bound to the virtual
// display, and the websocket bridge in front of it.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/deskwire/deskd/internal/alloc"
	"github.com/deskwire/deskd/internal/logger"
	"github.com/deskwire/deskd/internal/metrics"
)

// Handle is one launched stage. Cmd is nil when the stage never
// started; the handle stays in the set regardless so teardown and
// inspection see the full pipeline shape.
type Handle struct {
	Name     string
	Cmd      *exec.Cmd
	StartErr error

	logCloser interface{ Close() error }
}

// PID returns the stage's process id, or 0 when it never started.
func (h *Handle) PID() int {
	if h.Cmd == nil || h.Cmd.Process == nil {
		return 0
	}
	return h.Cmd.Process.Pid
}

// Alive reports whether the stage's process is still running.
func (h *Handle) Alive() bool {
	pid := h.PID()
	return pid > 0 && processExists(pid)
}

// Handles is the ordered process set for one session, owned by the
// session record from launch until teardown.
type Handles struct {
	Stages []*Handle
}

// Supervisor launches stage pipelines and terminates them. It holds no
// per-session state; all handles live with the session record.
type Supervisor struct {
	commands Commands
	log      logger.Config

	// ProbeBudget, when set, caps every stage's probe limit and settle
	// delay. Deployments leave it zero; tests shrink it so a launch
	// with unreachable probes still completes quickly.
	ProbeBudget time.Duration
}

func NewSupervisor(commands Commands, log logger.Config) *Supervisor {
	if commands == (Commands{}) {
		commands = DefaultCommands()
	}
	return &Supervisor{commands: commands, log: log}
}

// Launch starts the five stages in order, waiting for each stage's
// readiness probe (or settle delay) before starting the next. A stage
// that fails to start or never becomes ready is logged and skipped
// over; the pipeline keeps going and the dead stage surfaces later as a
// non-functional display. Launch only returns an error when ctx is
// cancelled mid-sequence.
func (s *Supervisor) Launch(ctx context.Context, sessionID string, res alloc.Resources, workspaceDir string) (*Handles, error) {
	handles := &Handles{}
	for _, spec := range s.commands.Stages(res, workspaceDir) {
		if s.ProbeBudget > 0 {
			spec.ProbeLimit = s.ProbeBudget
			if spec.Settle > s.ProbeBudget {
				spec.Settle = s.ProbeBudget
			}
		}
		h := s.startStage(sessionID, spec)
		handles.Stages = append(handles.Stages, h)
		if h.StartErr != nil {
			continue
		}
		if err := awaitReady(ctx, spec); err != nil {
			if ctx.Err() != nil {
				return handles, ctx.Err()
			}
			slog.Warn("stage readiness probe failed, continuing",
				"session", sessionID, "stage", spec.Name, "error", err)
			metrics.StageProbeFailure(spec.Name)
		}
	}
	return handles, nil
}

func (s *Supervisor) startStage(sessionID string, spec StageSpec) *Handle {
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &Handle{Name: spec.Name}
	if w := s.log.Writer(sessionID, spec.Name); w != nil {
		cmd.Stdout = w
		cmd.Stderr = w
		h.logCloser = w
	} else {
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		slog.Warn("stage failed to start, continuing",
			"session", sessionID, "stage", spec.Name, "error", err)
		metrics.StageStartFailure(spec.Name)
		h.StartErr = err
		return h
	}
	h.Cmd = cmd
	slog.Debug("stage started", "session", sessionID, "stage", spec.Name, "pid", cmd.Process.Pid)

	// Reap the child when it exits so dead stages never linger as
	// zombies for the life of the session.
	go func() { _ = cmd.Wait() }()
	return h
}

// Terminate signals every started stage's process group with SIGTERM
// and closes its log writer. Signal failures (stage already gone) are
// logged and absorbed: teardown always succeeds from the caller's view.
func (s *Supervisor) Terminate(sessionID string, handles *Handles) {
	if handles == nil {
		return
	}
	for _, h := range handles.Stages {
		if pid := h.PID(); pid > 0 {
			if err := terminateGroup(pid); err != nil {
				slog.Debug("stage signal failed",
					"session", sessionID, "stage", h.Name, "pid", pid, "error", err)
			}
		}
		if h.logCloser != nil {
			_ = h.logCloser.Close()
		}
	}
}
