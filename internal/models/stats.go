package models

import "time"

// SessionStats holds the counters of the running process.
type SessionStats struct {
	StartedAt              time.Time  `json:"started_at"`
	TotalDetections        int64      `json:"total_detections"`
	SuccessfulRecognitions int64      `json:"successful_recognitions"`
	RegistrationCount      int64      `json:"registration_count"`
	LastDetectionTime      *time.Time `json:"last_detection_time,omitempty"`
}

// RecognitionRate returns the share of detections that were recognized, in percent.
func (s SessionStats) RecognitionRate() float64 {
	if s.TotalDetections == 0 {
		return 0
	}
	return float64(s.SuccessfulRecognitions) / float64(s.TotalDetections) * 100
}

// Session is a persisted server run.
type Session struct {
	ID        int64        `json:"id"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	Stats     SessionStats `json:"stats"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// StatsTotals aggregates all persisted sessions.
type StatsTotals struct {
	Sessions               int        `json:"sessions"`
	TotalDetections        int64      `json:"total_detections"`
	SuccessfulRecognitions int64      `json:"successful_recognitions"`
	RegistrationCount      int64      `json:"registration_count"`
	LastDetectionTime      *time.Time `json:"last_detection_time,omitempty"`
}
