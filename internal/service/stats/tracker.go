package stats

import (
	"sync"
	"time"

	"facewatch/internal/models"
)

// Tracker accumulates detection and recognition counters for the running session.
// It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	stats models.SessionStats
	now   func() time.Time
}

// NewTracker starts a session at the current time.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock starts a session using now as the time source.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		stats: models.SessionStats{StartedAt: now()},
		now:   now,
	}
}

// Update records one detected face. It is called once per face, so a frame with several faces
// produces several calls.
func (t *Tracker) Update(recognized bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TotalDetections++
	if recognized {
		t.stats.SuccessfulRecognitions++
	}
	at := t.now()
	t.stats.LastDetectionTime = &at
}

// RecordEnrollment counts a successful enrollment.
func (t *Tracker) RecordEnrollment() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.RegistrationCount++
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() models.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	if s.LastDetectionTime != nil {
		at := *s.LastDetectionTime
		s.LastDetectionTime = &at
	}
	return s
}
