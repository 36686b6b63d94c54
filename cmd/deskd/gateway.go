package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskwire/deskd"
	"github.com/deskwire/deskd/internal/client"
	"github.com/deskwire/deskd/internal/gateway"
	"github.com/deskwire/deskd/internal/logger"
)

// createGatewayCommand creates the gateway subcommand: the public HTTP
// surface plus the streaming proxy, talking to a session daemon over
// its internal API.
func createGatewayCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gateway [config.toml]",
		Short: "Start the public gateway",
		Long: `Start the public-facing gateway. It forwards session operations to
the internal daemon and splices browser streaming connections through
to each session's websocket bridge.

Examples:
  deskd gateway
  DESKD_INTERNAL_URL=http://deskd-gui:6090 deskd gateway`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := flags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			return runGateway(configPath)
		},
	}
}

func runGateway(configPath string) error {
	cfg, err := deskd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogColor)

	api := client.New(cfg.InternalURL, 0)
	if !api.IsReachable() {
		slog.Warn("session daemon unreachable at startup, continuing", "url", cfg.InternalURL)
	}

	server := gateway.NewServer(cfg.GatewayAddr, api)
	slog.Info("gateway listening", "addr", cfg.GatewayAddr, "internal_url", cfg.InternalURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	return nil
}
