package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MimeLyc/video-annotator/pkg/icron"
)

// RuntimeSettings are the settings editable through the API. They are kept
// in a JSON file and take precedence over the environment on startup.
type RuntimeSettings struct {
	DefaultFPS   float64 `json:"default_fps"`
	AutosaveCron string  `json:"autosave_cron"`
	DocumentName string  `json:"document_name"`
}

func (s RuntimeSettings) Validate() error {
	if s.DefaultFPS <= 0 {
		return fmt.Errorf("default_fps must be positive")
	}
	if strings.TrimSpace(s.AutosaveCron) != "" {
		if err := icron.Validate(s.AutosaveCron); err != nil {
			return fmt.Errorf("invalid autosave_cron: %w", err)
		}
	}
	if strings.TrimSpace(s.DocumentName) == "" {
		return fmt.Errorf("document_name is required")
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		DefaultFPS:   c.Session.DefaultFPS,
		AutosaveCron: c.Storage.AutosaveCron,
		DocumentName: c.Storage.DocumentName,
	}
}

// WithRuntimeSettings overrides the fields of settings that are set.
// An empty autosave_cron keeps the environment's schedule.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if settings.DefaultFPS > 0 {
			c.Session.DefaultFPS = settings.DefaultFPS
		}
		if strings.TrimSpace(settings.AutosaveCron) != "" {
			c.Storage.AutosaveCron = settings.AutosaveCron
		}
		if strings.TrimSpace(settings.DocumentName) != "" {
			c.Storage.DocumentName = settings.DocumentName
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

// RuntimeSettingsStore serves the current settings and persists updates.
// Updates apply on the next start.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
