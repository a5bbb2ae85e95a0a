package repository

import (
	"time"

	"facewatch/internal/models"
)

// SightingRepository defines the interface for stored sighting frames.
type SightingRepository interface {
	// Create operations
	Insert(s *models.Sighting) (int64, error)

	// Read operations
	GetByID(id int64) (*models.Sighting, error)
	GetByFilename(filename string) (*models.Sighting, error)
	GetAll(filter *models.SightingFilter) ([]models.Sighting, error)
	GetTotalCount(filter *models.SightingFilter) (int, error)
	GetCameras() ([]string, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}

// RecognitionRepository defines the interface for per-face outcomes attached to sightings.
type RecognitionRepository interface {
	InsertBatch(recognitions []models.Recognition) error
	GetBySightingID(sightingID int64) ([]models.Recognition, error)
	GetAllNames() ([]string, error)
}

// SessionRepository persists the counters of server runs.
type SessionRepository interface {
	Create(stats models.SessionStats) (int64, error)
	Save(id int64, stats models.SessionStats) error
	End(id int64, stats models.SessionStats, at time.Time) error
	GetAll(limit int) ([]models.Session, error)
	Totals() (*models.StatsTotals, error)
}
