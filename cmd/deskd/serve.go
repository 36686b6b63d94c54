package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/deskwire/deskd"
	"github.com/deskwire/deskd/internal/logger"
)

// createServeCommand creates the serve subcommand: the internal session
// daemon that owns the registry, the pipelines and the idle reaper.
func createServeCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the session daemon",
		Long: `Start the internal session daemon. It exposes the trusted control
API (create/get/delete/touch) and must not be reachable from outside
the container network: it grants raw process-spawning capability.

Examples:
  deskd serve
  deskd serve deskd.toml
  DESKD_IDLE_TIMEOUT=10m deskd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := flags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			return runServe(configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := deskd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogColor)

	if err := deskd.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		slog.Warn("metrics registration failed", "error", err)
	}

	mgr, err := deskd.New(cfg)
	if err != nil {
		return fmt.Errorf("error starting session manager: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkspaceRoot, 0o750); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.StartReaper(ctx)

	server := mgr.Serve(cfg.InternalAddr)
	slog.Info("session daemon listening",
		"addr", cfg.InternalAddr,
		"workspace_root", cfg.WorkspaceRoot,
		"idle_timeout", cfg.IdleTimeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	if cfg.TeardownOnExit {
		mgr.Shutdown()
	}
	return nil
}
