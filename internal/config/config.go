// Package config provides configuration loading for the hyprline service hub.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Notifications NotificationsConfig `yaml:"notifications"`
	Tray          TrayConfig          `yaml:"tray"`
	Collectors    CollectorsConfig    `yaml:"collectors"`
}

// NotificationsConfig configures the freedesktop Notifications server.
type NotificationsConfig struct {
	// StorePath overrides the SQLite database location.
	// Default: $XDG_DATA_HOME/hyprline-notifications/notifications.db
	StorePath string `yaml:"store_path,omitempty"`

	// HistoryLimit is parsed and defaulted to 100, but nothing reads it:
	// the notification store always returns its 100 newest rows and does
	// not trim on write.
	HistoryLimit int `yaml:"history_limit"`
}

// TrayConfig configures the StatusNotifierWatcher/resolver pair.
type TrayConfig struct {
	// BusName overrides org.kde.StatusNotifierWatcher, mainly for tests.
	BusName string `yaml:"bus_name,omitempty"`
}

// CollectorsConfig configures the observer hub's background collectors.
type CollectorsConfig struct {
	VolumePollInterval       time.Duration `yaml:"volume_poll_interval"`
	NetworkPollInterval      time.Duration `yaml:"network_poll_interval"`
	SysResourcesPollInterval time.Duration `yaml:"sysresources_poll_interval"`
}

// Load reads configuration from the default location
// (~/.config/hyprline/hub.yaml). A missing file is not an error; defaults
// are returned instead.
func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("get config dir: %w", err)
	}

	path := filepath.Join(configDir, "hyprline", "hub.yaml")
	cfg, err := LoadFrom(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}
	return cfg, err
}

// LoadFrom reads configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		// Returned unwrapped so callers can test it with os.IsNotExist.
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.Notifications.StorePath = expandPath(cfg.Notifications.StorePath)

	return &cfg, nil
}

// applyDefaults sets default values for unspecified config options.
func (c *Config) applyDefaults() {
	if c.Notifications.HistoryLimit == 0 {
		c.Notifications.HistoryLimit = 100
	}
	if c.Tray.BusName == "" {
		c.Tray.BusName = "org.kde.StatusNotifierWatcher"
	}
	if c.Collectors.VolumePollInterval == 0 {
		c.Collectors.VolumePollInterval = 2 * time.Second
	}
	if c.Collectors.NetworkPollInterval == 0 {
		c.Collectors.NetworkPollInterval = 10 * time.Second
	}
	if c.Collectors.SysResourcesPollInterval == 0 {
		c.Collectors.SysResourcesPollInterval = 2 * time.Second
	}
}

// parseDuration parses a duration string with support for days (d) and
// weeks (w) in addition to the standard Go duration suffixes.
// Examples: "14d" (14 days), "2w" (2 weeks), "5m" (5 minutes), "1h" (1 hour).
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		var days int
		if _, err := fmt.Sscanf(numStr, "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if days < 0 {
			return 0, fmt.Errorf("invalid duration %q: negative values not allowed", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if strings.HasSuffix(s, "w") {
		numStr := strings.TrimSuffix(s, "w")
		var weeks int
		if _, err := fmt.Sscanf(numStr, "%d", &weeks); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if weeks < 0 {
			return 0, fmt.Errorf("invalid duration %q: negative values not allowed", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// UnmarshalYAML implements custom unmarshaling so collector intervals can
// use the extended day/week duration suffixes.
func (c *CollectorsConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		VolumePollInterval       string `yaml:"volume_poll_interval"`
		NetworkPollInterval      string `yaml:"network_poll_interval"`
		SysResourcesPollInterval string `yaml:"sysresources_poll_interval"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	var err error
	if raw.VolumePollInterval != "" {
		if c.VolumePollInterval, err = parseDuration(raw.VolumePollInterval); err != nil {
			return fmt.Errorf("parse volume_poll_interval: %w", err)
		}
	}
	if raw.NetworkPollInterval != "" {
		if c.NetworkPollInterval, err = parseDuration(raw.NetworkPollInterval); err != nil {
			return fmt.Errorf("parse network_poll_interval: %w", err)
		}
	}
	if raw.SysResourcesPollInterval != "" {
		if c.SysResourcesPollInterval, err = parseDuration(raw.SysResourcesPollInterval); err != nil {
			return fmt.Errorf("parse sysresources_poll_interval: %w", err)
		}
	}
	return nil
}
