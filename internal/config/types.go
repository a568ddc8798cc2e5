package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pricehawk/pkg/logx"
)

type Config struct {
	Backend       BackendConfig       `json:"backend"`
	Scheduler     SchedulerConfig     `json:"scheduler,omitempty"`
	Notifications NotificationsConfig `json:"notifications,omitempty"`
	Storage       StorageConfig       `json:"storage"`
	Logging       LoggingConfig       `json:"logging,omitempty"`
}

// BackendConfig points at the remote price-check service.
//
// The engine refuses remote operations (with a distinguishable
// "backend not configured" error) until BaseURL and APIToken are set.
type BackendConfig struct {
	BaseURL        string `json:"base_url"`
	APIToken       string `json:"api_token"` // static bearer token (do not log)
	BootstrapEmail string `json:"bootstrap_email"`
}

// SchedulerConfig controls automatic check cycles.
//
// All durations are Go duration strings (e.g. "30s", "15m", "1h").
//
// Defaults (when fields are omitted/zero):
//   - foreground_tick: "5s"
//   - forced_interval: "" (use the server-advised interval)
//
// ForcedInterval, when set, always wins over the server-advised interval.
// Both are floored at 5 minutes.
type SchedulerConfig struct {
	ForcedInterval string `json:"forced_interval,omitempty"`
	ForegroundTick string `json:"foreground_tick,omitempty"`
}

// NotificationsConfig controls price alerts.
//
// Channel values:
//   - "log": alerts go to the structured log (default)
//   - "telegram": alerts are sent via a Telegram bot
type NotificationsConfig struct {
	Enabled  bool            `json:"enabled"`
	Channel  string          `json:"channel,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// StorageConfig selects the key-value persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./pricehawk_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// BackendConfigured reports whether remote calls can be attempted at all.
func (c *Config) BackendConfigured() bool {
	b := c.Backend
	return strings.HasPrefix(strings.TrimSpace(b.BaseURL), "http") && strings.TrimSpace(b.APIToken) != ""
}

// Validate performs cheap structural checks. It does not touch the network.
func (c *Config) Validate() error {
	if _, err := c.ForcedInterval(); err != nil {
		return err
	}
	if _, err := c.ForegroundTick(); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if c.Notifications.Enabled && strings.EqualFold(c.Notifications.Channel, "telegram") {
		tg := c.Notifications.Telegram
		if tg == nil || strings.TrimSpace(tg.Token) == "" || tg.ChatID == 0 {
			return errors.New("notifications.telegram: token and chat_id are required for the telegram channel")
		}
	}
	switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", d)
	}
	return nil
}

// ForcedInterval returns the configured interval override (0 when unset).
func (c *Config) ForcedInterval() (time.Duration, error) {
	return ParseDurationField("scheduler.forced_interval", c.Scheduler.ForcedInterval)
}

// ForegroundTick returns the foreground poll period (default 5s).
func (c *Config) ForegroundTick() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.foreground_tick", c.Scheduler.ForegroundTick, 5*time.Second)
}

// LogxConfig maps the logging section onto the logx service config.
func (c *Config) LogxConfig() logx.Config {
	console := true
	if c.Logging.Console != nil {
		console = *c.Logging.Console
	}
	return logx.Config{
		Level:   c.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}
