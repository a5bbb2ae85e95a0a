package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/service/ai"
	"facewatch/internal/service/backup"
	"facewatch/internal/service/stats"
	"facewatch/internal/service/storage"
)

// Broadcaster delivers live-view messages.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// SightingSink receives annotated frames with identified faces.
type SightingSink interface {
	AddSighting(data []byte, camera string, outcomes []models.Outcome) bool
}

// FrameMessage is what live viewers receive for every processed frame.
type FrameMessage struct {
	Camera    string           `json:"camera"`
	Timestamp time.Time        `json:"timestamp"`
	Image     []byte           `json:"image"`
	Faces     []models.Outcome `json:"faces"`
}

type pendingFrame struct {
	frame  gocv.Mat
	camera string
}

// Manager owns the face store, pipeline and backups and serializes access between them.
// Frame processing, enrollment and removal share the exclusive lock; backup and restore hold it
// alone for their whole duration.
type Manager struct {
	cfg      *config.Config
	settings *config.SettingsStore
	detector FaceDetector
	store    *storage.FaceStore
	tracker  *stats.Tracker
	pipeline *FramePipeline
	backups  *backup.Manager
	hub      Broadcaster
	sink     SightingSink
	logger   *logger.Logger

	exclusive sync.RWMutex

	pendingMu sync.Mutex
	pending   map[string]gocv.Mat
	queue     []string
	dropped   int64

	modelWarning sync.Once
}

// NewManager wires the manager. hub and sink may be nil.
func NewManager(cfg *config.Config, settings *config.SettingsStore, detector FaceDetector, store *storage.FaceStore,
	tracker *stats.Tracker, backups *backup.Manager, hub Broadcaster, sink SightingSink, logger *logger.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		settings: settings,
		detector: detector,
		store:    store,
		tracker:  tracker,
		pipeline: NewFramePipeline(detector, ai.NewRecognizer(), store, tracker, logger),
		backups:  backups,
		hub:      hub,
		sink:     sink,
		logger:   logger,
		pending:  make(map[string]gocv.Mat),
	}
}

func (m *Manager) Store() *storage.FaceStore       { return m.store }
func (m *Manager) Settings() *config.SettingsStore { return m.settings }
func (m *Manager) Tracker() *stats.Tracker         { return m.tracker }
func (m *Manager) Backups() *backup.Manager        { return m.backups }

// HandleCameraImage decodes a JPEG frame from a network camera and queues it.
func (m *Manager) HandleCameraImage(data []byte, camera string) {
	frame, err := decode(data)
	if err != nil {
		m.logger.Warning("Dropping frame from camera %s: %v", camera, err)
		return
	}
	m.HandleFrame(frame, camera)
}

// HandleFrame hands frame to the driver, which takes ownership of it. Only the latest frame
// of each camera is kept; an older unprocessed frame from the same camera is dropped.
func (m *Manager) HandleFrame(frame gocv.Mat, camera string) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	if old, ok := m.pending[camera]; ok {
		old.Close()
		m.dropped++
	} else {
		m.queue = append(m.queue, camera)
	}
	m.pending[camera] = frame
}

// takePending returns the waiting frames, one per camera, in the order the cameras queued.
func (m *Manager) takePending() []pendingFrame {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	if len(m.queue) == 0 {
		return nil
	}
	frames := make([]pendingFrame, 0, len(m.queue))
	for _, camera := range m.queue {
		frames = append(frames, pendingFrame{frame: m.pending[camera], camera: camera})
		delete(m.pending, camera)
	}
	m.queue = m.queue[:0]
	return frames
}

// DroppedFrames returns how many frames were replaced before they could be processed.
func (m *Manager) DroppedFrames() int64 {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return m.dropped
}

// FrameInterval is the driver cadence for the current settings.
func (m *Manager) FrameInterval() time.Duration {
	if m.settings.Get().BatterySaver {
		return m.cfg.BatterySaverInterval
	}
	return m.cfg.FrameInterval
}

// Run processes the latest frame of every camera at the configured cadence until ctx is done.
// It returns between frames; frames still waiting are released.
func (m *Manager) Run(ctx context.Context) {
	timer := time.NewTimer(m.FrameInterval())
	defer timer.Stop()

	m.logger.Info("Frame driver started (interval %v)", m.FrameInterval())
	for {
		select {
		case <-ctx.Done():
			closeFrames(m.takePending())
			m.logger.Info("Frame driver stopped")
			return
		case <-timer.C:
		}

		frames := m.takePending()
		for i, p := range frames {
			if ctx.Err() != nil {
				closeFrames(frames[i:])
				break
			}
			if _, err := m.ProcessFrame(p.frame, p.camera); err != nil && !errors.Is(err, models.ErrModelUnavailable) {
				m.logger.Error("Failed to process frame from %s: %v", p.camera, err)
			}
			p.frame.Close()
		}
		timer.Reset(m.FrameInterval())
	}
}

func closeFrames(frames []pendingFrame) {
	for _, p := range frames {
		p.frame.Close()
	}
}

// ProcessFrame runs the pipeline on frame, broadcasts the annotated result and buffers
// sightings. frame is not modified or closed.
func (m *Manager) ProcessFrame(frame gocv.Mat, camera string) ([]models.Outcome, error) {
	m.exclusive.RLock()
	defer m.exclusive.RUnlock()

	annotated, outcomes, err := m.pipeline.Process(frame, ParamsFrom(m.settings.Get()))
	if err != nil {
		if errors.Is(err, models.ErrModelUnavailable) {
			m.modelWarning.Do(func() {
				m.logger.Error("Face detection disabled: %v", err)
			})
		}
		return nil, err
	}
	defer annotated.Close()

	if m.hub == nil && m.sink == nil {
		return outcomes, nil
	}

	jpeg, err := ai.EncodeJPEG(annotated)
	if err != nil {
		return outcomes, err
	}

	if m.hub != nil {
		msg, err := json.Marshal(FrameMessage{Camera: camera, Timestamp: time.Now(), Image: jpeg, Faces: outcomes})
		if err != nil {
			return outcomes, fmt.Errorf("failed to encode frame message: %w", err)
		}
		m.hub.Broadcast(msg)
	}
	if m.sink != nil {
		m.sink.AddSighting(jpeg, camera, outcomes)
	}
	return outcomes, nil
}

// RecognizeImage runs the pipeline on an encoded image and returns the annotated image as JPEG.
func (m *Manager) RecognizeImage(data []byte) ([]byte, []models.Outcome, error) {
	frame, err := decode(data)
	if err != nil {
		return nil, nil, err
	}
	defer frame.Close()

	m.exclusive.RLock()
	defer m.exclusive.RUnlock()

	annotated, outcomes, err := m.pipeline.Process(frame, ParamsFrom(m.settings.Get()))
	if err != nil {
		return nil, nil, err
	}
	defer annotated.Close()

	jpeg, err := ai.EncodeJPEG(annotated)
	if err != nil {
		return nil, nil, err
	}
	return jpeg, outcomes, nil
}

// EnrollImage enrolls the single face found in an encoded image under name.
func (m *Manager) EnrollImage(data []byte, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", models.ErrInvalidName
	}

	frame, err := decode(data)
	if err != nil {
		return "", err
	}
	defer frame.Close()

	return m.Enroll(frame, name)
}

// Enroll detects faces in frame and stores the region under name. Exactly one face is required.
func (m *Manager) Enroll(frame gocv.Mat, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", models.ErrInvalidName
	}

	m.exclusive.RLock()
	defer m.exclusive.RUnlock()

	regions, err := m.detector.Detect(frame, m.settings.Get().DetectionSensitivity)
	if err != nil {
		return "", err
	}
	switch {
	case len(regions) == 0:
		return "", models.ErrNoFaceDetected
	case len(regions) > 1:
		return "", fmt.Errorf("%w: %d faces", models.ErrAmbiguousDetection, len(regions))
	}

	rect := regions[0].Rect().Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return "", models.ErrNoFaceDetected
	}

	face := frame.Region(rect)
	defer face.Close()

	id, err := m.store.Enroll(name, face)
	if err != nil {
		return "", err
	}
	m.tracker.RecordEnrollment()
	return id, nil
}

// RemoveFace deletes an enrolled face.
func (m *Manager) RemoveFace(id string) error {
	m.exclusive.RLock()
	defer m.exclusive.RUnlock()
	return m.store.Remove(id)
}

// Backup creates an archive while holding exclusive access to the store.
func (m *Manager) Backup(ctx context.Context) (string, error) {
	m.exclusive.Lock()
	defer m.exclusive.Unlock()
	return m.backups.CreateBackup(ctx)
}

// Restore restores an archive while holding exclusive access to the store.
func (m *Manager) Restore(ctx context.Context, archivePath string) error {
	m.exclusive.Lock()
	defer m.exclusive.Unlock()
	return m.backups.RestoreBackup(ctx, archivePath)
}

func decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, models.ErrEmptyImage
	}
	frame, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %w", models.ErrEmptyImage, err)
	}
	if frame.Empty() {
		frame.Close()
		return gocv.Mat{}, fmt.Errorf("%w: unsupported image format", models.ErrEmptyImage)
	}
	return frame, nil
}
