package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		// Days
		{"1d", 24 * time.Hour, false},
		{"14d", 14 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},

		// Weeks
		{"1w", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"4w", 28 * 24 * time.Hour, false},

		// Standard Go durations
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"336h", 14 * 24 * time.Hour, false},
		{"1h30m", time.Hour + 30*time.Minute, false},

		// Edge cases
		{"0d", 0, false},
		{"0w", 0, false},
		{"", 0, false},
		{"  14d  ", 14 * 24 * time.Hour, false},

		// Errors
		{"invalid", 0, true},
		{"d", 0, true},
		{"w", 0, true},
		{"14x", 0, true},
		{"-1d", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/foo/bar", filepath.Join(home, "foo/bar")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandPath(tt.input); got != tt.want {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Notifications.HistoryLimit != 100 {
		t.Errorf("HistoryLimit = %d, want 100", cfg.Notifications.HistoryLimit)
	}
	if cfg.Tray.BusName != "org.kde.StatusNotifierWatcher" {
		t.Errorf("BusName = %q, want %q", cfg.Tray.BusName, "org.kde.StatusNotifierWatcher")
	}
	if cfg.Collectors.VolumePollInterval != 2*time.Second {
		t.Errorf("VolumePollInterval = %v, want 2s", cfg.Collectors.VolumePollInterval)
	}
	if cfg.Collectors.NetworkPollInterval != 10*time.Second {
		t.Errorf("NetworkPollInterval = %v, want 10s", cfg.Collectors.NetworkPollInterval)
	}
	if cfg.Collectors.SysResourcesPollInterval != 2*time.Second {
		t.Errorf("SysResourcesPollInterval = %v, want 2s", cfg.Collectors.SysResourcesPollInterval)
	}
}

func TestApplyDefaultsDoesNotOverrideSetValues(t *testing.T) {
	cfg := Config{
		Notifications: NotificationsConfig{HistoryLimit: 50},
		Tray:          TrayConfig{BusName: "org.example.Watcher"},
		Collectors:    CollectorsConfig{VolumePollInterval: 5 * time.Second},
	}
	cfg.applyDefaults()

	if cfg.Notifications.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.Notifications.HistoryLimit)
	}
	if cfg.Tray.BusName != "org.example.Watcher" {
		t.Errorf("BusName = %q, want %q", cfg.Tray.BusName, "org.example.Watcher")
	}
	if cfg.Collectors.VolumePollInterval != 5*time.Second {
		t.Errorf("VolumePollInterval = %v, want 5s", cfg.Collectors.VolumePollInterval)
	}
	// untouched fields still get their defaults
	if cfg.Collectors.NetworkPollInterval != 10*time.Second {
		t.Errorf("NetworkPollInterval = %v, want 10s", cfg.Collectors.NetworkPollInterval)
	}
}

func TestCollectorsConfigUnmarshalYAML(t *testing.T) {
	input := `
volume_poll_interval: "500ms"
network_poll_interval: "1d"
sysresources_poll_interval: "3s"
`
	var c CollectorsConfig
	if err := yaml.Unmarshal([]byte(input), &c); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if c.VolumePollInterval != 500*time.Millisecond {
		t.Errorf("VolumePollInterval = %v, want 500ms", c.VolumePollInterval)
	}
	if c.NetworkPollInterval != 24*time.Hour {
		t.Errorf("NetworkPollInterval = %v, want 24h", c.NetworkPollInterval)
	}
	if c.SysResourcesPollInterval != 3*time.Second {
		t.Errorf("SysResourcesPollInterval = %v, want 3s", c.SysResourcesPollInterval)
	}
}

func TestCollectorsConfigUnmarshalYAMLInvalidDuration(t *testing.T) {
	input := `volume_poll_interval: "not-a-duration"`
	var c CollectorsConfig
	if err := yaml.Unmarshal([]byte(input), &c); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("LoadFrom() error = %v, want os.IsNotExist", err)
	}
}

func TestLoadFromAppliesDefaultsAndExpandsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.yaml")
	contents := `
notifications:
  store_path: "~/custom/notifications.db"
tray:
  bus_name: "org.example.Watcher"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}
	want := filepath.Join(home, "custom/notifications.db")
	if cfg.Notifications.StorePath != want {
		t.Errorf("StorePath = %q, want %q", cfg.Notifications.StorePath, want)
	}
	if cfg.Tray.BusName != "org.example.Watcher" {
		t.Errorf("BusName = %q, want %q", cfg.Tray.BusName, "org.example.Watcher")
	}
	if cfg.Notifications.HistoryLimit != 100 {
		t.Errorf("HistoryLimit = %d, want 100", cfg.Notifications.HistoryLimit)
	}
	if cfg.Collectors.VolumePollInterval != 2*time.Second {
		t.Errorf("VolumePollInterval = %v, want 2s", cfg.Collectors.VolumePollInterval)
	}
}
