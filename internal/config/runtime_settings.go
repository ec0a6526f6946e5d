package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

const DefaultRuntimeSettingsFile = "/data/settings.json"

// RuntimeSettings are the knobs an operator may change without a restart.
type RuntimeSettings struct {
	SplitSeparator   string `json:"split_separator"`
	SyncQuietSeconds int    `json:"sync_quiet_seconds"`
	MaintenanceCron  string `json:"maintenance_cron"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.SplitSeparator) == "" {
		return fmt.Errorf("split_separator is required")
	}
	if s.SyncQuietSeconds <= 0 {
		return fmt.Errorf("sync_quiet_seconds must be positive")
	}
	if strings.TrimSpace(s.MaintenanceCron) == "" {
		return fmt.Errorf("maintenance_cron is required")
	}
	if _, err := cron.ParseStandard(s.MaintenanceCron); err != nil {
		return fmt.Errorf("invalid maintenance_cron: %w", err)
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		SplitSeparator:   c.Annotate.SplitSeparator,
		SyncQuietSeconds: c.Annotate.SyncQuietSeconds,
		MaintenanceCron:  c.Maintenance.CronExpr,
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.SplitSeparator) != "" {
			c.Annotate.SplitSeparator = settings.SplitSeparator
		}
		if settings.SyncQuietSeconds > 0 {
			c.Annotate.SyncQuietSeconds = settings.SyncQuietSeconds
		}
		if strings.TrimSpace(settings.MaintenanceCron) != "" {
			c.Maintenance.CronExpr = settings.MaintenanceCron
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// SettingsStore keeps the current runtime settings in memory and mirrors
// every accepted update to the settings file.
type SettingsStore struct {
	path string

	mu      sync.Mutex
	current RuntimeSettings
}

// NewSettingsStore loads settings from path, falling back to defaults when
// the file does not exist yet.
func NewSettingsStore(path string, defaults RuntimeSettings) (*SettingsStore, error) {
	current := defaults
	if loaded, err := LoadRuntimeSettingsFile(path); err == nil {
		if err := loaded.Validate(); err == nil {
			current = loaded
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return &SettingsStore{path: path, current: current}, nil
}

func (s *SettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *SettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}
	s.current = next
	return s.current, nil
}
