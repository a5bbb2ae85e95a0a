package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/service/ai"
)

const (
	// SnapshotFileName is the serialized record list inside the store directory.
	SnapshotFileName = "faces_data.json"
	rasterExt        = ".png"
	snapshotVersion  = 1
)

type snapshot struct {
	Version int                 `json:"version"`
	Faces   []models.FaceRecord `json:"faces"`
}

// FaceStore keeps enrolled faces: one grayscale PNG per record plus a JSON snapshot of the
// records in enrollment order.
type FaceStore struct {
	dir     string
	records []models.FaceRecord
	mu      sync.RWMutex
	logger  *logger.Logger
	newID   func() string
	now     func() time.Time
}

// NewFaceStore creates the store directory if needed and loads the snapshot.
func NewFaceStore(dir string, logger *logger.Logger) (*FaceStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create store directory: %w", models.ErrPersistence, err)
	}

	store := &FaceStore{
		dir:    dir,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	store.Load()
	return store, nil
}

// Dir returns the store directory.
func (s *FaceStore) Dir() string {
	return s.dir
}

// Load replaces the in-memory records with the snapshot on disk. A missing snapshot yields an
// empty store; an unreadable one is logged and also yields an empty store. Records whose raster
// is missing, and repeated ids, are dropped.
func (s *FaceStore) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.readSnapshot()
}

func (s *FaceStore) readSnapshot() []models.FaceRecord {
	data, err := os.ReadFile(s.snapshotPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to read faces snapshot: %v", err)
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Error("Failed to decode faces snapshot, starting with an empty store: %v", err)
		return nil
	}

	records := make([]models.FaceRecord, 0, len(snap.Faces))
	seen := make(map[string]bool, len(snap.Faces))
	for _, rec := range snap.Faces {
		if rec.ID == "" || seen[rec.ID] {
			s.logger.Warning("Skipping duplicate or empty face id %q in snapshot", rec.ID)
			continue
		}
		if !isPlainName(rec.Filename) {
			s.logger.Warning("Skipping face %s with invalid raster name %q", rec.ID, rec.Filename)
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, rec.Filename)); err != nil {
			s.logger.Warning("Skipping face %s (%s): raster missing", rec.ID, rec.Name)
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records
}

// Enroll stores face under name and returns the new record id. The raster and snapshot are
// both on disk when it returns nil; on error nothing is left behind.
func (s *FaceStore) Enroll(name string, face gocv.Mat) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.ErrInvalidName
	}
	if face.Empty() {
		return "", models.ErrEmptyImage
	}

	gray, err := ai.ToGray(face)
	if err != nil {
		return "", err
	}
	defer gray.Close()

	data, err := ai.EncodePNG(gray)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.FaceRecord{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	rec.Filename = rec.ID + rasterExt
	rasterPath := filepath.Join(s.dir, rec.Filename)

	if err := writeFileAtomic(rasterPath, data); err != nil {
		return "", fmt.Errorf("%w: raster: %w", models.ErrPersistence, err)
	}

	next := append(append([]models.FaceRecord(nil), s.records...), rec)
	if err := s.writeSnapshot(next); err != nil {
		if rmErr := os.Remove(rasterPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Error("Failed to roll back raster %s: %v", rasterPath, rmErr)
		}
		return "", fmt.Errorf("%w: snapshot: %w", models.ErrPersistence, err)
	}

	s.records = next
	s.logger.Info("Enrolled face %s as %q", rec.ID, rec.Name)
	return rec.ID, nil
}

// Remove deletes the record and its raster. The record is gone once the snapshot is written;
// a raster that cannot be deleted afterwards is logged and left behind as an orphan.
func (s *FaceStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	rec := s.records[idx]

	next := make([]models.FaceRecord, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	if err := s.writeSnapshot(next); err != nil {
		return fmt.Errorf("%w: snapshot: %w", models.ErrPersistence, err)
	}
	s.records = next

	if err := os.Remove(filepath.Join(s.dir, rec.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warning("Face %s removed but raster %s remains: %v", rec.ID, rec.Filename, err)
	}

	s.logger.Info("Removed face %s (%s)", rec.ID, rec.Name)
	return nil
}

// List returns (id, name) pairs in enrollment order.
func (s *FaceStore) List() []models.FaceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.FaceEntry, 0, len(s.records))
	for _, rec := range s.records {
		entries = append(entries, models.FaceEntry{ID: rec.ID, Name: rec.Name})
	}
	return entries
}

// Records returns a copy of all records in enrollment order.
func (s *FaceStore) Records() []models.FaceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FaceRecord(nil), s.records...)
}

// Get returns the record with the given id.
func (s *FaceStore) Get(id string) (models.FaceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOf(id); idx >= 0 {
		return s.records[idx], true
	}
	return models.FaceRecord{}, false
}

// Len returns the number of enrolled faces.
func (s *FaceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RasterPath returns the on-disk raster of a record.
func (s *FaceStore) RasterPath(rec models.FaceRecord) string {
	return filepath.Join(s.dir, rec.Filename)
}

// VisitTemplates implements ai.Gallery. The store stays read-locked for the whole visit so
// mutations cannot interleave with a recognition pass.
func (s *FaceStore) VisitTemplates(fn func(rec models.FaceRecord, template gocv.Mat) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		template := gocv.IMRead(filepath.Join(s.dir, rec.Filename), gocv.IMReadGrayScale)
		if template.Empty() {
			template.Close()
			continue
		}
		next := fn(rec, template)
		template.Close()
		if !next {
			return
		}
	}
}

func (s *FaceStore) indexOf(id string) int {
	for i, rec := range s.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (s *FaceStore) snapshotPath() string {
	return filepath.Join(s.dir, SnapshotFileName)
}

func (s *FaceStore) writeSnapshot(records []models.FaceRecord) error {
	if records == nil {
		records = []models.FaceRecord{}
	}
	data, err := json.MarshalIndent(snapshot{Version: snapshotVersion, Faces: records}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.snapshotPath(), data)
}

// writeFileAtomic writes data to a temp file in the target directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func isPlainName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}
