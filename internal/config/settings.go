package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"facewatch/internal/models"
)

// Resolution is a discrete camera resolution. It only affects frame dimensions.
type Resolution string

const (
	Resolution480p  Resolution = "480p"
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// Dimensions returns the frame width and height for the resolution.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Resolution1080p:
		return 1920, 1080
	case Resolution720p:
		return 1280, 720
	default:
		return 640, 480
	}
}

// Valid reports whether r is one of the supported resolutions.
func (r Resolution) Valid() bool {
	return r == Resolution480p || r == Resolution720p || r == Resolution1080p
}

const (
	MinSensitivity = 1.0
	MaxSensitivity = 2.0
	MinThreshold   = 0.3
	MaxThreshold   = 0.9
)

// Settings are the user-facing options persisted in the settings file.
type Settings struct {
	ThemeStyle           string     `yaml:"theme_style" json:"theme_style"`
	DetectionSensitivity float64    `yaml:"detection_sensitivity" json:"detection_sensitivity"`
	RecognitionThreshold float64    `yaml:"recognition_threshold" json:"recognition_threshold"`
	BatterySaver         bool       `yaml:"battery_saver" json:"battery_saver"`
	CameraResolution     Resolution `yaml:"camera_resolution" json:"camera_resolution"`
	AutoBackup           bool       `yaml:"auto_backup" json:"auto_backup"`
}

// DefaultSettings returns the settings written on first start.
func DefaultSettings() Settings {
	return Settings{
		ThemeStyle:           "Dark",
		DetectionSensitivity: 1.3,
		RecognitionThreshold: 0.5,
		BatterySaver:         false,
		CameraResolution:     Resolution720p,
		AutoBackup:           true,
	}
}

// Validate checks every option against its allowed range.
func (s Settings) Validate() error {
	var errs []error
	if s.DetectionSensitivity < MinSensitivity || s.DetectionSensitivity > MaxSensitivity {
		errs = append(errs, fmt.Errorf("detection_sensitivity %.2f not in [%.1f, %.1f]", s.DetectionSensitivity, MinSensitivity, MaxSensitivity))
	}
	if s.RecognitionThreshold < MinThreshold || s.RecognitionThreshold > MaxThreshold {
		errs = append(errs, fmt.Errorf("recognition_threshold %.2f not in [%.1f, %.1f]", s.RecognitionThreshold, MinThreshold, MaxThreshold))
	}
	if !s.CameraResolution.Valid() {
		errs = append(errs, fmt.Errorf("camera_resolution %q not one of 480p, 720p, 1080p", s.CameraResolution))
	}
	if s.ThemeStyle != "Light" && s.ThemeStyle != "Dark" {
		errs = append(errs, fmt.Errorf("theme_style %q not one of Light, Dark", s.ThemeStyle))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// SettingsStore guards the settings file and its in-memory copy.
type SettingsStore struct {
	path     string
	settings Settings
	mu       sync.RWMutex
}

// LoadSettings reads the settings file at path, creating it with defaults when missing.
// Options absent from the file keep their default values.
func LoadSettings(path string) (*SettingsStore, error) {
	s := &SettingsStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the settings file. The in-memory copy is left untouched on error.
func (s *SettingsStore) Reload() error {
	settings := DefaultSettings()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := writeSettings(s.path, settings); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to read settings %s: %w", s.path, err)
	default:
		if settings, err = ParseSettings(data); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// ParseSettings decodes a settings file over the defaults and validates the result.
func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("%w: %w", models.ErrInvalidSettings, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// Check reports whether data would be accepted as the contents of the settings file.
func (s *SettingsStore) Check(data []byte) error {
	_, err := ParseSettings(data)
	return err
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn to a copy of the settings, validates and persists the result.
func (s *SettingsStore) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.settings, err
	}
	if err := writeSettings(s.path, next); err != nil {
		return s.settings, err
	}
	s.settings = next
	return next, nil
}

// Path returns the settings file location.
func (s *SettingsStore) Path() string {
	return s.path
}

func writeSettings(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}
