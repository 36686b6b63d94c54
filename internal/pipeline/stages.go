package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/deskwire/deskd/internal/alloc"
)

// Stage names, in launch order. They double as log file suffixes and
// metric labels.
const (
	StageXvfb   = "xvfb"
	StageWM     = "wm"
	StageApp    = "app"
	StageVNC    = "vnc"
	StageBridge = "bridge"
)

// Commands holds the operator-configurable command line for each stage.
// Placeholders {display}, {vncPort}, {wsPort} and {workspace} are
// substituted per session before launch.
type Commands struct {
	Xvfb          string `mapstructure:"xvfb"`
	WindowManager string `mapstructure:"window_manager"`
	App           string `mapstructure:"app"`
	VNC           string `mapstructure:"vnc"`
	Bridge        string `mapstructure:"bridge"`
}

// DefaultCommands runs the stock Xvfb/fluxbox/x11vnc/websockify chain
// around the packaged application jar.
func DefaultCommands() Commands {
	return Commands{
		Xvfb:          "Xvfb :{display} -screen 0 1920x1080x24",
		WindowManager: "fluxbox",
		App:           "java -jar /app/PA9.jar",
		VNC:           "x11vnc -display :{display} -rfbport {vncPort} -forever -shared -nopw",
		Bridge:        "websockify --web=/usr/share/novnc {wsPort} localhost:{vncPort}",
	}
}

// Stages expands the command templates into the five ordered stage
// specs for one session. Stages with a listening endpoint get a
// readiness probe; the window manager and the application only get a
// short settle delay since neither exposes anything to poll.
func (c Commands) Stages(res alloc.Resources, workspaceDir string) []StageSpec {
	displayEnv := fmt.Sprintf("DISPLAY=:%d", res.Display)
	expand := func(tmpl string) string {
		r := strings.NewReplacer(
			"{display}", fmt.Sprintf("%d", res.Display),
			"{vncPort}", fmt.Sprintf("%d", res.VNCPort),
			"{wsPort}", fmt.Sprintf("%d", res.WSPort),
			"{workspace}", workspaceDir,
		)
		return r.Replace(tmpl)
	}
	return []StageSpec{
		{
			Name:       StageXvfb,
			Command:    expand(c.Xvfb),
			Probe:      ProbeUnixSocket,
			ProbePath:  fmt.Sprintf("/tmp/.X11-unix/X%d", res.Display),
			ProbeLimit: 5 * time.Second,
		},
		{
			Name:    StageWM,
			Command: expand(c.WindowManager),
			Env:     []string{displayEnv},
			Probe:   ProbeNone,
			Settle:  500 * time.Millisecond,
		},
		{
			Name:    StageApp,
			Command: expand(c.App),
			WorkDir: workspaceDir,
			Env:     []string{displayEnv},
			Probe:   ProbeNone,
			Settle:  time.Second,
		},
		{
			Name:       StageVNC,
			Command:    expand(c.VNC),
			Env:        []string{displayEnv},
			Probe:      ProbeTCP,
			ProbePort:  res.VNCPort,
			ProbeLimit: 5 * time.Second,
		},
		{
			Name:       StageBridge,
			Command:    expand(c.Bridge),
			Probe:      ProbeTCP,
			ProbePort:  res.WSPort,
			ProbeLimit: 5 * time.Second,
		},
	}
}
