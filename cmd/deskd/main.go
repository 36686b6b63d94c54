package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "deskd",
		Short: "Headless desktop session daemon",
		Long: `Deskd runs isolated desktop sessions inside a container and makes
them viewable in a browser. Each session gets its own virtual display,
window manager, application instance, VNC server and websocket bridge.

Examples:
  deskd serve                       # internal session daemon
  deskd gateway                     # public API + streaming proxy
  deskd serve --config=deskd.toml   # with explicit config file`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	root.AddCommand(
		createServeCommand(flags),
		createGatewayCommand(flags),
	)
	return root
}
