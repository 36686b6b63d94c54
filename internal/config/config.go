// Package config loads daemon and gateway settings from an optional
// TOML file with DESKD_* environment overrides on top. Every knob has a
// working default; a bare container runs with no config file at all.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/deskwire/deskd/internal/logger"
	"github.com/deskwire/deskd/internal/pipeline"
)

type Config struct {
	// Internal session daemon.
	InternalAddr  string        `mapstructure:"internal_addr"`
	WorkspaceRoot string        `mapstructure:"workspace_root"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	ReapInterval  time.Duration `mapstructure:"reap_interval"`
	DisplayBase   int           `mapstructure:"display_base"`
	VNCBase       int           `mapstructure:"vnc_base"`
	WSBase        int           `mapstructure:"ws_base"`
	// Tear down all live sessions when the daemon exits.
	TeardownOnExit bool `mapstructure:"teardown_on_exit"`

	// Public gateway.
	GatewayAddr string `mapstructure:"gateway_addr"`
	// Base URL at which the gateway reaches the internal API.
	InternalURL string `mapstructure:"internal_url"`

	// Optional lifecycle audit trail (sqlite:// or postgres:// DSN).
	HistoryDSN string `mapstructure:"history_dsn"`

	LogLevel string `mapstructure:"log_level"`
	LogColor bool   `mapstructure:"log_color"`

	Commands pipeline.Commands `mapstructure:"commands"`
	StageLog logger.Config     `mapstructure:"stage_log"`
}

// Load reads path (TOML) when non-empty and applies environment
// overrides of the form DESKD_IDLE_TIMEOUT, DESKD_WORKSPACE_ROOT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DESKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("internal_addr", ":6090")
	v.SetDefault("workspace_root", "/workspace")
	v.SetDefault("idle_timeout", "30m")
	v.SetDefault("reap_interval", "1m")
	v.SetDefault("display_base", 100)
	v.SetDefault("vnc_base", 5900)
	v.SetDefault("ws_base", 6900)
	v.SetDefault("teardown_on_exit", true)

	v.SetDefault("gateway_addr", ":3001")
	v.SetDefault("internal_url", "http://localhost:6090")

	v.SetDefault("history_dsn", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_color", false)

	def := pipeline.DefaultCommands()
	v.SetDefault("commands.xvfb", def.Xvfb)
	v.SetDefault("commands.window_manager", def.WindowManager)
	v.SetDefault("commands.app", def.App)
	v.SetDefault("commands.vnc", def.VNC)
	v.SetDefault("commands.bridge", def.Bridge)
}

func (c *Config) validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap_interval must be positive, got %s", c.ReapInterval)
	}
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace_root must not be empty")
	}
	for name, base := range map[string]int{
		"display_base": c.DisplayBase,
		"vnc_base":     c.VNCBase,
		"ws_base":      c.WSBase,
	} {
		if base <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, base)
		}
	}
	return nil
}
