// Package config handles Hirelight configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for the inbox sync core.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings for the local store.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Scheduler settings for the adaptive refresh loop.
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`

	// Push settings for the change feed transport.
	Push PushConfig `yaml:"push" mapstructure:"push"`

	// Identity is the authenticated recruiter this client acts as.
	Identity IdentityConfig `yaml:"identity" mapstructure:"identity"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// DataDir is where the client stores its data (default: ~/.local/share/hirelight).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/hirelight).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains local store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// SchedulerConfig contains adaptive refresh settings.
type SchedulerConfig struct {
	// FastInterval is the poll cadence for a visible but idle session.
	FastInterval time.Duration `yaml:"fast_interval" mapstructure:"fast_interval"`

	// SlowInterval is the poll cadence for a backgrounded session.
	SlowInterval time.Duration `yaml:"slow_interval" mapstructure:"slow_interval"`

	// IdleWindow is how long without interaction before a visible session
	// counts as idle.
	IdleWindow time.Duration `yaml:"idle_window" mapstructure:"idle_window"`

	// AutoRefresh is the initial state of the user-togglable enable flag.
	AutoRefresh bool `yaml:"auto_refresh" mapstructure:"auto_refresh"`
}

// PushConfig contains change feed transport settings.
type PushConfig struct {
	// URL is the websocket endpoint of the change feed.
	URL string `yaml:"url" mapstructure:"url"`

	// Token authenticates the subscription.
	Token string `yaml:"token" mapstructure:"token"`

	// ReconnectBase is the initial reconnect backoff.
	ReconnectBase time.Duration `yaml:"reconnect_base" mapstructure:"reconnect_base"`

	// ReconnectMax caps the reconnect backoff.
	ReconnectMax time.Duration `yaml:"reconnect_max" mapstructure:"reconnect_max"`

	// HeartbeatInterval is how often the transport pings the feed.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
}

// IdentityConfig identifies the authenticated user.
type IdentityConfig struct {
	// UserID is the authenticated user's id.
	UserID string `yaml:"user_id" mapstructure:"user_id"`

	// Address is the user's own outbound email address.
	Address string `yaml:"address" mapstructure:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "hirelight"),
			ConfigDir: filepath.Join(homeDir, ".config", "hirelight"),
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/inbox.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Scheduler: SchedulerConfig{
			FastInterval: 2 * time.Minute,
			SlowInterval: 10 * time.Minute,
			IdleWindow:   90 * time.Second,
			AutoRefresh:  true,
		},
		Push: PushConfig{
			ReconnectBase:     time.Second,
			ReconnectMax:      30 * time.Second,
			HeartbeatInterval: 25 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Scheduler.FastInterval < time.Second {
		return fmt.Errorf("scheduler.fast_interval must be at least 1s")
	}
	if c.Scheduler.SlowInterval < c.Scheduler.FastInterval {
		return fmt.Errorf("scheduler.slow_interval must not be shorter than fast_interval")
	}
	if c.Scheduler.IdleWindow < time.Second {
		return fmt.Errorf("scheduler.idle_window must be at least 1s")
	}
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms cannot be negative")
	}
	if c.Push.ReconnectBase <= 0 || c.Push.ReconnectMax < c.Push.ReconnectBase {
		return fmt.Errorf("push.reconnect_base/reconnect_max are inconsistent")
	}
	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "inbox.db")
}
