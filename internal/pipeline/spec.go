package pipeline

import (
	"os/exec"
	"strings"
	"time"
)

// ProbeKind selects how a stage's readiness is observed after start.
type ProbeKind string

const (
	// ProbeNone waits a fixed settle delay; used for stages with no
	// observable endpoint (window manager, the application itself).
	ProbeNone ProbeKind = "none"
	// ProbeUnixSocket polls for a filesystem path to appear (the X
	// display socket under /tmp/.X11-unix).
	ProbeUnixSocket ProbeKind = "unix-socket"
	// ProbeTCP polls until a loopback TCP port accepts connections.
	ProbeTCP ProbeKind = "tcp"
)

// StageSpec describes one process in the session pipeline.
type StageSpec struct {
	Name    string
	Command string   // shell-style command line
	WorkDir string   // optional working dir
	Env     []string // optional extra env (appended to os.Environ)

	Probe      ProbeKind
	ProbePath  string        // for ProbeUnixSocket
	ProbePort  int           // for ProbeTCP
	Settle     time.Duration // for ProbeNone, or fallback after probe
	ProbeLimit time.Duration // max time to wait for the probe
}

// BuildCommand constructs an *exec.Cmd for the stage's command line.
// Commands with shell metacharacters run under /bin/sh -c; plain ones
// exec directly to keep the stage the process-group leader's child.
func (s *StageSpec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// ok: intentional execution, command comes from operator config
	// #nosec G204
	return exec.Command(name, args...)
}
