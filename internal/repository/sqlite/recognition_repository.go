package sqlite

import (
	"fmt"

	"facewatch/internal/models"
)

// RecognitionRepository implements repository.RecognitionRepository for SQLite.
type RecognitionRepository struct {
	db *DB
}

// NewRecognitionRepository creates a new SQLite recognition repository.
func NewRecognitionRepository(db *DB) *RecognitionRepository {
	return &RecognitionRepository{db: db}
}

// InsertBatch adds recognitions in a single transaction.
func (r *RecognitionRepository) InsertBatch(recognitions []models.Recognition) error {
	if len(recognitions) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO recognitions (sighting_id, face_id, name, x, y, width, height, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recognitions {
		if _, err := stmt.Exec(rec.SightingID, rec.FaceID, rec.Name, rec.X, rec.Y, rec.Width, rec.Height, rec.Score); err != nil {
			return fmt.Errorf("failed to insert recognition: %w", err)
		}
	}

	return tx.Commit()
}

// GetBySightingID returns the recognitions stored with a sighting.
func (r *RecognitionRepository) GetBySightingID(sightingID int64) ([]models.Recognition, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, sighting_id, face_id, name, x, y, width, height, score
		FROM recognitions WHERE sighting_id = ? ORDER BY id
	`, sightingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recognitions: %w", err)
	}
	defer rows.Close()

	var out []models.Recognition
	for rows.Next() {
		var rec models.Recognition
		if err := rows.Scan(&rec.ID, &rec.SightingID, &rec.FaceID, &rec.Name, &rec.X, &rec.Y, &rec.Width, &rec.Height, &rec.Score); err != nil {
			return nil, fmt.Errorf("failed to scan recognition: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetAllNames returns every distinct recognized name.
func (r *RecognitionRepository) GetAllNames() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return queryStrings(r.db.Conn(), `SELECT DISTINCT name FROM recognitions ORDER BY name`)
}
