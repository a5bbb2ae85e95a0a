package models

import (
	"image"
	"time"
)

// FaceRecord is a single enrolled face. The raster lives next to the snapshot as Filename.
type FaceRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Filename  string    `json:"file"`
	CreatedAt time.Time `json:"created_at"`
}

// FaceEntry is the read-only projection of a record used for listings.
type FaceEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Region is a face bounding box in source-frame pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromRect converts an image.Rectangle into a Region.
func RegionFromRect(r image.Rectangle) Region {
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Outcome is the recognition result for one detected region.
// FaceID is empty when the region was not recognized.
type Outcome struct {
	Region Region  `json:"region"`
	FaceID string  `json:"face_id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Score  float64 `json:"score"`
}

// Identified reports whether the region was matched to an enrolled face.
func (o Outcome) Identified() bool {
	return o.FaceID != ""
}
