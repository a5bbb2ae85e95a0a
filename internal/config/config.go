package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port         int               `env:"PORT" envDefault:"8080"`
	Password     string            `env:"PASSWORD" envDefault:"facewatch"`
	FacesDir     string            `env:"FACES_DIR" envDefault:"faces_data"`
	BackupDir    string            `env:"BACKUP_DIR" envDefault:"backups"`
	SettingsPath string            `env:"SETTINGS_PATH" envDefault:"face_detection_config.yaml"`
	SightingsDir string            `env:"SIGHTINGS_DIR" envDefault:"sightings"`
	DatabasePath string            `env:"DATABASE_PATH" envDefault:"data/facewatch.db"`
	LogDirectory string            `env:"LOG_DIR" envDefault:"logs"`
	LogLevel     string            `env:"LOG_LEVEL" envDefault:"info"`
	CascadePaths []string          `env:"CASCADE_PATHS" envSeparator:":"`
	CamerasPort  int               `env:"CAMERAS_PORT" envDefault:"9000"`
	CameraNames  map[string]string `env:"CAMERA_NAMES" envSeparator:"," envKeyValSeparator:"="`
	CameraDevice int               `env:"CAMERA_DEVICE" envDefault:"-1"`

	FrameInterval        time.Duration `env:"FRAME_INTERVAL" envDefault:"33ms"`
	BatterySaverInterval time.Duration `env:"BATTERY_SAVER_INTERVAL" envDefault:"200ms"`
	StatsSaveInterval    time.Duration `env:"STATS_SAVE_INTERVAL" envDefault:"1m"`

	SightingBufferLimit   int           `env:"SIGHTING_BUFFER_LIMIT" envDefault:"10"`
	SightingFlushInterval time.Duration `env:"SIGHTING_FLUSH_INTERVAL" envDefault:"30s"`

	Storage Storage `envPrefix:"MINIO_"`
}

// Storage contains offsite backup storage parameters. Offsite upload is disabled when Endpoint is empty.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"facewatch-backups"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Enabled reports whether offsite backups are configured.
func (s Storage) Enabled() bool {
	return s.Endpoint != ""
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ModelSearchPaths returns the ordered list of locations probed for the face cascade:
// executable directory, working directory, external storage, then CASCADE_PATHS entries.
func (c *Config) ModelSearchPaths() []string {
	paths := make([]string, 0, 3+len(c.CascadePaths))
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), CascadeFileName))
	}
	paths = append(paths, CascadeFileName)
	if ext := os.Getenv("EXTERNAL_STORAGE"); ext != "" {
		paths = append(paths, filepath.Join(ext, CascadeFileName))
	}
	for _, p := range c.CascadePaths {
		if filepath.Ext(p) != ".xml" {
			p = filepath.Join(p, CascadeFileName)
		}
		paths = append(paths, p)
	}
	return paths
}

// CascadeFileName is the pretrained frontal-face model shipped with OpenCV.
const CascadeFileName = "haarcascade_frontalface_default.xml"
