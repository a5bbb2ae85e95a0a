package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"facewatch/internal/models"
)

// SightingRepository implements repository.SightingRepository for SQLite.
type SightingRepository struct {
	db *DB
}

// NewSightingRepository creates a new SQLite sighting repository.
func NewSightingRepository(db *DB) *SightingRepository {
	return &SightingRepository{db: db}
}

// Insert adds a new sighting record.
func (r *SightingRepository) Insert(s *models.Sighting) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO sightings (filename, camera, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?)
	`, s.Filename, s.Camera, s.Timestamp.UTC(), s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sighting: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a sighting by id. A missing row yields (nil, nil).
func (r *SightingRepository) GetByID(id int64) (*models.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.scanOne(r.db.Conn().QueryRow(`
		SELECT id, filename, camera, timestamp, filepath, filesize
		FROM sightings WHERE id = ?
	`, id))
}

// GetByFilename retrieves a sighting by its stored file name.
func (r *SightingRepository) GetByFilename(filename string) (*models.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.scanOne(r.db.Conn().QueryRow(`
		SELECT id, filename, camera, timestamp, filepath, filesize
		FROM sightings WHERE filename = ?
	`, filename))
}

func (r *SightingRepository) scanOne(row *sql.Row) (*models.Sighting, error) {
	var s models.Sighting
	err := row.Scan(&s.ID, &s.Filename, &s.Camera, &s.Timestamp, &s.FilePath, &s.FileSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sighting: %w", err)
	}
	return &s, nil
}

// whereClause builds the shared filter for GetAll and GetTotalCount.
func whereClause(filter *models.SightingFilter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(" WHERE 1=1")
	args := []interface{}{}
	if filter == nil {
		return b.String(), args
	}

	if filter.Camera != "" {
		b.WriteString(" AND s.camera = ?")
		args = append(args, filter.Camera)
	}
	if filter.Name != "" {
		b.WriteString(" AND r.name = ?")
		args = append(args, filter.Name)
	}
	if !filter.StartDate.IsZero() {
		b.WriteString(" AND s.timestamp >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		b.WriteString(" AND s.timestamp < ?")
		args = append(args, filter.EndDate.UTC())
	}
	return b.String(), args
}

// GetAll returns sightings matching filter, newest first.
func (r *SightingRepository) GetAll(filter *models.SightingFilter) ([]models.Sighting, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT DISTINCT s.id, s.filename, s.camera, s.timestamp, s.filepath, s.filesize
		FROM sightings s
		LEFT JOIN recognitions r ON s.id = r.sighting_id` + where + " ORDER BY s.timestamp DESC, s.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []models.Sighting
	for rows.Next() {
		var s models.Sighting
		if err := rows.Scan(&s.ID, &s.Filename, &s.Camera, &s.Timestamp, &s.FilePath, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, s)
	}

	return sightings, rows.Err()
}

// GetTotalCount returns the number of sightings matching filter, ignoring paging.
func (r *SightingRepository) GetTotalCount(filter *models.SightingFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `
		SELECT COUNT(DISTINCT s.id)
		FROM sightings s
		LEFT JOIN recognitions r ON s.id = r.sighting_id` + where

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return count, nil
}

// GetCameras returns the distinct camera names with stored sightings.
func (r *SightingRepository) GetCameras() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return queryStrings(r.db.Conn(), `SELECT DISTINCT camera FROM sightings ORDER BY camera`)
}

// Delete removes a sighting and its recognitions.
func (r *SightingRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM recognitions WHERE sighting_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete recognitions: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM sightings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sighting: %w", err)
	}
	return nil
}

// DeleteAll removes every sighting and recognition.
func (r *SightingRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM recognitions`); err != nil {
		return fmt.Errorf("failed to delete recognitions: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM sightings`); err != nil {
		return fmt.Errorf("failed to delete sightings: %w", err)
	}
	return nil
}

func queryStrings(conn *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
