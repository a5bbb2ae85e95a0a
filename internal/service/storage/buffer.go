package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/repository"
)

const timestampLayout = "2006-01-02_15-04-05.000"

// BufferedSighting is an annotated frame waiting to be flushed.
type BufferedSighting struct {
	Timestamp time.Time
	Camera    string
	Outcomes  []models.Outcome
	Data      []byte
}

// SightingBuffer keeps annotated frames with identified faces in memory and periodically
// writes them to disk and the sightings database.
type SightingBuffer struct {
	dir             string
	limit           int
	interval        time.Duration
	sightings       []BufferedSighting
	bufferCount     map[string]int
	mu              sync.Mutex
	logger          *logger.Logger
	sightingRepo    repository.SightingRepository
	recognitionRepo repository.RecognitionRepository
	now             func() time.Time
}

// NewSightingBuffer creates a buffer writing into cfg.SightingsDir. The repositories may be nil,
// in which case frames are only written to disk.
func NewSightingBuffer(cfg *config.Config, logger *logger.Logger, sightingRepo repository.SightingRepository, recognitionRepo repository.RecognitionRepository) *SightingBuffer {
	return &SightingBuffer{
		dir:             cfg.SightingsDir,
		limit:           cfg.SightingBufferLimit,
		interval:        cfg.SightingFlushInterval,
		bufferCount:     make(map[string]int),
		logger:          logger,
		sightingRepo:    sightingRepo,
		recognitionRepo: recognitionRepo,
		now:             time.Now,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *SightingBuffer) Run(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSightings()
			return
		case <-ticker.C:
			s.FlushSightings()
		}
	}
}

// AddSighting buffers an encoded frame if at least one outcome was identified and the camera
// has not reached its per-flush limit. It reports whether the frame was kept.
func (s *SightingBuffer) AddSighting(data []byte, camera string, outcomes []models.Outcome) bool {
	identified := make([]models.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Identified() {
			identified = append(identified, o)
		}
	}
	if len(identified) == 0 || len(data) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.bufferCount[camera] >= s.limit {
		return false
	}

	s.sightings = append(s.sightings, BufferedSighting{
		Timestamp: s.now(),
		Camera:    camera,
		Outcomes:  identified,
		Data:      data,
	})
	s.bufferCount[camera]++
	return true
}

// Pending returns the number of buffered frames.
func (s *SightingBuffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sightings)
}

// FlushSightings writes buffered frames to disk, records them in the repositories and resets
// the buffer. It returns how many frames were saved.
func (s *SightingBuffer) FlushSightings() int {
	s.mu.Lock()
	pending := s.sightings
	s.sightings = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating sightings directory: %v", err)
		return 0
	}

	saved := 0
	for i, sighting := range pending {
		if err := s.save(i, sighting); err != nil {
			s.logger.Error("%v", err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed %d sightings to disk", saved)
	return saved
}

func (s *SightingBuffer) save(seq int, sighting BufferedSighting) error {
	filename := sightingFilename(seq, sighting)
	fullpath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullpath, sighting.Data, 0644); err != nil {
		return fmt.Errorf("failed to save sighting %s: %w", filename, err)
	}

	if s.sightingRepo == nil {
		return nil
	}

	id, err := s.sightingRepo.Insert(&models.Sighting{
		Filename:  filename,
		Camera:    sighting.Camera,
		Timestamp: sighting.Timestamp,
		FilePath:  fullpath,
		FileSize:  int64(len(sighting.Data)),
	})
	if err != nil {
		return fmt.Errorf("failed to record sighting %s: %w", filename, err)
	}

	if s.recognitionRepo == nil {
		return nil
	}

	recognitions := make([]models.Recognition, 0, len(sighting.Outcomes))
	for _, o := range sighting.Outcomes {
		recognitions = append(recognitions, models.Recognition{
			SightingID: id,
			FaceID:     o.FaceID,
			Name:       o.Name,
			X:          o.Region.X,
			Y:          o.Region.Y,
			Width:      o.Region.Width,
			Height:     o.Region.Height,
			Score:      o.Score,
		})
	}
	if err := s.recognitionRepo.InsertBatch(recognitions); err != nil {
		return fmt.Errorf("failed to record recognitions for %s: %w", filename, err)
	}
	return nil
}

// sightingFilename is "<timestamp>_<seq>_<camera>_<names>.jpg" with path-unsafe runes replaced.
func sightingFilename(seq int, sighting BufferedSighting) string {
	names := make([]string, 0, len(sighting.Outcomes))
	for _, o := range sighting.Outcomes {
		names = append(names, o.Name)
	}
	return sanitizeFilename(fmt.Sprintf("%s_%03d_%s_%s.jpg",
		sighting.Timestamp.Format(timestampLayout), seq, sighting.Camera, strings.Join(names, "-")))
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
