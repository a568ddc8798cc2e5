package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestParseJSON(t *testing.T) {
	m := writeConfig(t, "config.json", `{
		"backend": {
			"base_url": "https://hawk.example.com",
			"api_token": "tok",
			"bootstrap_email": "me@example.com"
		},
		"scheduler": {"forced_interval": "30m", "foreground_tick": "2s"},
		"storage": {"driver": "file", "path": "./store"}
	}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.BackendConfigured() {
		t.Fatalf("backend should be configured")
	}
	if d, _ := cfg.ForcedInterval(); d != 30*time.Minute {
		t.Fatalf("forced_interval = %v, want 30m", d)
	}
	if d, _ := cfg.ForegroundTick(); d != 2*time.Second {
		t.Fatalf("foreground_tick = %v, want 2s", d)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := writeConfig(t, "config.json", `{
		"backend": {"base_url": "https://x", "api_token": "t"},
		"storage": {"driver": "file", "path": "./s"},
		"intervall": "30m"
	}`)
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "intervall") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := writeConfig(t, "config.json", `{"storage": {"driver": "file", "path": "./s"}} {"extra": true}`)
	if _, err := m.Parse(); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}

func TestParseYAMLCoercion(t *testing.T) {
	m := writeConfig(t, "config.yaml", `
backend:
  base_url: https://hawk.example.com
  api_token: tok
scheduler:
  forced_interval: 45m
notifications:
  enabled: true
  channel: telegram
  telegram:
    token: bot-token
    chat_id: 4242
storage:
  driver: sqlite
  path: ./hawk.db
  busy_timeout: 5s
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d, _ := cfg.ForcedInterval(); d != 45*time.Minute {
		t.Fatalf("forced_interval = %v, want 45m", d)
	}
	if cfg.Notifications.Telegram == nil || cfg.Notifications.Telegram.ChatID != 4242 {
		t.Fatalf("telegram chat_id not decoded: %+v", cfg.Notifications.Telegram)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "bad forced interval",
			cfg: Config{
				Scheduler: SchedulerConfig{ForcedInterval: "soon"},
			},
			wantErr: "forced_interval",
		},
		{
			name: "negative tick",
			cfg: Config{
				Scheduler: SchedulerConfig{ForegroundTick: "-5s"},
			},
			wantErr: "foreground_tick",
		},
		{
			name: "telegram without credentials",
			cfg: Config{
				Notifications: NotificationsConfig{Enabled: true, Channel: "telegram"},
			},
			wantErr: "telegram",
		},
		{
			name: "telegram chat id missing",
			cfg: Config{
				Notifications: NotificationsConfig{
					Enabled:  true,
					Channel:  "telegram",
					Telegram: &TelegramConfig{Token: "tok"},
				},
			},
			wantErr: "chat_id",
		},
		{
			name: "unknown storage driver",
			cfg: Config{
				Storage: StorageConfig{Driver: "redis"},
			},
			wantErr: "storage.driver",
		},
		{
			name: "disabled telegram skips credential check",
			cfg: Config{
				Notifications: NotificationsConfig{Enabled: false, Channel: "telegram"},
			},
		},
		{
			name: "empty config is valid",
			cfg:  Config{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestBackendConfigured(t *testing.T) {
	var cfg Config
	if cfg.BackendConfigured() {
		t.Fatalf("empty backend should not count as configured")
	}
	cfg.Backend = BackendConfig{BaseURL: "https://x", APIToken: " "}
	if cfg.BackendConfigured() {
		t.Fatalf("blank token should not count as configured")
	}
	cfg.Backend = BackendConfig{BaseURL: "ftp://x", APIToken: "t"}
	if cfg.BackendConfigured() {
		t.Fatalf("non-http base url should not count as configured")
	}
	cfg.Backend = BackendConfig{BaseURL: "https://x", APIToken: "t"}
	if !cfg.BackendConfigured() {
		t.Fatalf("http url + token should count as configured")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("f", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v), want (0, nil)", d, err)
	}
	if _, err := ParseDurationField("f", "nope"); err == nil {
		t.Fatalf("expected error for non-duration")
	}
	if d, err := ParseDurationOrDefault("f", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = (%v, %v), want (1m, nil)", d, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := m.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load on missing file = %v, want not-exist", err)
	}
}
