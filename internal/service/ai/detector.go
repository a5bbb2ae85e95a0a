package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
)

const (
	// MinNeighbors is how many overlapping candidates a region needs to count as a face.
	MinNeighbors = 5
	// minScaleStep is the smallest scale step the cascade accepts; it must be strictly above 1.
	minScaleStep = 1.01
)

// DetectorService locates frontal faces with a Haar cascade.
type DetectorService struct {
	classifier gocv.CascadeClassifier
	modelPath  string
	loaded     bool
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewDetectorService loads the cascade from the first usable entry of searchPaths.
// When no model can be loaded the returned service is still usable but every Detect call
// fails with models.ErrModelUnavailable; the returned error is meant to be reported once.
func NewDetectorService(searchPaths []string, logger *logger.Logger) (*DetectorService, error) {
	service := &DetectorService{
		logger: logger,
	}

	if err := service.initializeModel(searchPaths); err != nil {
		return service, err
	}

	return service, nil
}

// initializeModel probes the search path in order; the first existing file that loads wins.
func (s *DetectorService) initializeModel(searchPaths []string) error {
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		classifier := gocv.NewCascadeClassifier()
		if !classifier.Load(path) {
			classifier.Close()
			s.logger.Warning("Could not load face model from %s", path)
			continue
		}

		s.classifier = classifier
		s.modelPath = path
		s.loaded = true
		s.logger.Info("Face detection model loaded from %s", path)
		return nil
	}

	return fmt.Errorf("%w: %s not found in %v", models.ErrModelUnavailable, config.CascadeFileName, searchPaths)
}

// Loaded reports whether the model was loaded at startup.
func (s *DetectorService) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// ModelPath returns the path the model was loaded from.
func (s *DetectorService) ModelPath() string {
	return s.modelPath
}

// Detect returns the face regions found in frame. An empty result is not an error.
func (s *DetectorService) Detect(frame gocv.Mat, sensitivity float64) ([]models.Region, error) {
	if !s.Loaded() {
		return nil, models.ErrModelUnavailable
	}
	if sensitivity < config.MinSensitivity || sensitivity > config.MaxSensitivity {
		return nil, fmt.Errorf("%w: %.2f", models.ErrInvalidSensitivity, sensitivity)
	}
	if frame.Empty() {
		return nil, models.ErrEmptyImage
	}

	gray, err := ToGray(frame)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, models.ErrModelUnavailable
	}
	rects := s.classifier.DetectMultiScaleWithParams(gray, scaleStep(sensitivity), MinNeighbors, 0, image.Point{}, image.Point{})
	s.mu.Unlock()

	regions := make([]models.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, models.RegionFromRect(r))
	}
	return regions, nil
}

// Close releases the cascade.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.classifier.Close()
}

// ClampSensitivity forces v into the supported sensitivity range.
func ClampSensitivity(v float64) float64 {
	return min(max(v, config.MinSensitivity), config.MaxSensitivity)
}

func scaleStep(sensitivity float64) float64 {
	return max(sensitivity, minScaleStep)
}

// ToGray returns a single-channel copy of m. The caller owns the result.
func ToGray(m gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()

	var err error
	switch m.Channels() {
	case 1:
		m.CopyTo(&gray)
	case 3:
		err = gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	case 4:
		err = gocv.CvtColor(m, &gray, gocv.ColorBGRAToGray)
	default:
		err = fmt.Errorf("unsupported channel count %d", m.Channels())
	}
	if err != nil {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("failed to convert image to grayscale: %w", err)
	}
	return gray, nil
}
