package models

import "time"

// Sighting represents a stored annotated frame with at least one identified face.
type Sighting struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// Recognition is a single face outcome stored with a sighting.
type Recognition struct {
	ID         int64   `json:"id"`
	SightingID int64   `json:"sighting_id"`
	FaceID     string  `json:"face_id"`
	Name       string  `json:"name"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Score      float64 `json:"score"`
}

// SightingFilter contains filtering options for querying sightings.
type SightingFilter struct {
	Camera    string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}
