package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"facewatch/internal/models"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Create starts a new session row and returns its id.
func (r *SessionRepository) Create(stats models.SessionStats) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO sessions (started_at, total_detections, successful_recognitions, registration_count, last_detection_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, stats.StartedAt.UTC(), stats.TotalDetections, stats.SuccessfulRecognitions, stats.RegistrationCount,
		nullTime(stats.LastDetectionTime), r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	return result.LastInsertId()
}

// Save overwrites the counters of session id.
func (r *SessionRepository) Save(id int64, stats models.SessionStats) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		UPDATE sessions SET total_detections = ?, successful_recognitions = ?, registration_count = ?,
			last_detection_time = ?, updated_at = ?
		WHERE id = ?
	`, stats.TotalDetections, stats.SuccessfulRecognitions, stats.RegistrationCount,
		nullTime(stats.LastDetectionTime), r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// End saves the final counters and marks the session finished.
func (r *SessionRepository) End(id int64, stats models.SessionStats, at time.Time) error {
	if err := r.Save(id, stats); err != nil {
		return err
	}

	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// GetAll returns the most recent sessions first. limit <= 0 returns all.
func (r *SessionRepository) GetAll(limit int) ([]models.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, started_at, ended_at, total_detections, successful_recognitions, registration_count,
			last_detection_time, updated_at
		FROM sessions ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var (
			s        models.Session
			ended    sql.NullTime
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Stats.StartedAt, &ended, &s.Stats.TotalDetections, &s.Stats.SuccessfulRecognitions,
			&s.Stats.RegistrationCount, &lastSeen, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.EndedAt = timePtr(ended)
		s.Stats.LastDetectionTime = timePtr(lastSeen)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Totals sums the counters of every stored session.
func (r *SessionRepository) Totals() (*models.StatsTotals, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		totals   models.StatsTotals
		lastSeen sql.NullString
	)
	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(total_detections), 0), COALESCE(SUM(successful_recognitions), 0),
			COALESCE(SUM(registration_count), 0), MAX(last_detection_time)
		FROM sessions
	`).Scan(&totals.Sessions, &totals.TotalDetections, &totals.SuccessfulRecognitions, &totals.RegistrationCount, &lastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to compute session totals: %w", err)
	}

	// MAX() loses the column type, so the driver hands back text.
	if lastSeen.Valid {
		if t, ok := parseSQLiteTime(lastSeen.String); ok {
			totals.LastDetectionTime = &t
		}
	}
	return &totals, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseSQLiteTime(s string) (time.Time, bool) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
