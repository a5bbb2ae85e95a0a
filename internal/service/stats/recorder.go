package stats

import (
	"context"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/repository"
)

// Recorder persists the tracker's counters as one session row.
type Recorder struct {
	tracker  *Tracker
	repo     repository.SessionRepository
	interval time.Duration
	logger   *logger.Logger
	id       int64
}

// NewRecorder opens a new session row for tracker.
func NewRecorder(tracker *Tracker, repo repository.SessionRepository, interval time.Duration, logger *logger.Logger) (*Recorder, error) {
	id, err := repo.Create(tracker.Snapshot())
	if err != nil {
		return nil, err
	}
	return &Recorder{
		tracker:  tracker,
		repo:     repo,
		interval: interval,
		logger:   logger,
		id:       id,
	}, nil
}

// SessionID returns the id of the session row.
func (r *Recorder) SessionID() int64 {
	return r.id
}

// Save writes the current counters.
func (r *Recorder) Save() error {
	return r.repo.Save(r.id, r.tracker.Snapshot())
}

// Run saves periodically until ctx is done, then closes the session.
func (r *Recorder) Run(ctx context.Context) {
	interval := r.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.repo.End(r.id, r.tracker.Snapshot(), time.Now()); err != nil {
				r.logger.Error("Failed to close session %d: %v", r.id, err)
				return
			}
			r.logger.Info("Session %d saved", r.id)
			return
		case <-ticker.C:
			if err := r.Save(); err != nil {
				r.logger.Error("Failed to save session %d: %v", r.id, err)
			}
		}
	}
}
