package service

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/service/ai"
	"facewatch/internal/service/stats"
)

// FaceDetector locates faces in a frame.
type FaceDetector interface {
	Detect(frame gocv.Mat, sensitivity float64) ([]models.Region, error)
}

// Params are the per-call tuning values taken from the settings.
type Params struct {
	Sensitivity float64
	Threshold   float64
}

// ParamsFrom extracts pipeline parameters from the settings.
func ParamsFrom(s config.Settings) Params {
	return Params{Sensitivity: s.DetectionSensitivity, Threshold: s.RecognitionThreshold}
}

// FramePipeline runs detection, recognition, stats and annotation for one frame.
type FramePipeline struct {
	detector   FaceDetector
	recognizer *ai.Recognizer
	gallery    ai.Gallery
	tracker    *stats.Tracker
	logger     *logger.Logger
}

// NewFramePipeline wires a pipeline. tracker may be nil.
func NewFramePipeline(detector FaceDetector, recognizer *ai.Recognizer, gallery ai.Gallery, tracker *stats.Tracker, logger *logger.Logger) *FramePipeline {
	return &FramePipeline{
		detector:   detector,
		recognizer: recognizer,
		gallery:    gallery,
		tracker:    tracker,
		logger:     logger,
	}
}

// Process returns an annotated copy of frame and one outcome per detected region, in detector
// order. frame itself is never modified. The caller owns the returned Mat.
func (p *FramePipeline) Process(frame gocv.Mat, params Params) (gocv.Mat, []models.Outcome, error) {
	if frame.Empty() {
		return gocv.Mat{}, nil, models.ErrEmptyImage
	}
	if params.Threshold < config.MinThreshold || params.Threshold > config.MaxThreshold {
		return gocv.Mat{}, nil, fmt.Errorf("%w: %.2f", models.ErrInvalidThreshold, params.Threshold)
	}

	regions, err := p.detector.Detect(frame, params.Sensitivity)
	if err != nil {
		return gocv.Mat{}, nil, err
	}

	gray, err := ai.ToGray(frame)
	if err != nil {
		return gocv.Mat{}, nil, err
	}
	defer gray.Close()

	annotated := frame.Clone()
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())

	outcomes := make([]models.Outcome, 0, len(regions))
	for _, region := range regions {
		outcome := p.recognizeRegion(gray, bounds, region, params.Threshold)
		outcome.Region = region

		if p.tracker != nil {
			p.tracker.Update(outcome.Identified())
		}
		if err := ai.DrawOutcome(&annotated, outcome); err != nil {
			p.logger.Warning("Failed to annotate region %v: %v", region, err)
		}
		outcomes = append(outcomes, outcome)
	}

	return annotated, outcomes, nil
}

// recognizeRegion crops region out of gray and matches it. Failures degrade to unrecognized.
func (p *FramePipeline) recognizeRegion(gray gocv.Mat, bounds image.Rectangle, region models.Region, threshold float64) models.Outcome {
	rect := region.Rect().Intersect(bounds)
	if rect.Empty() {
		return models.Outcome{}
	}

	crop := gray.Region(rect)
	defer crop.Close()

	outcome, err := p.recognizer.Recognize(crop, p.gallery, threshold)
	if err != nil {
		p.logger.Warning("Recognition failed for region %v: %v", region, err)
		return models.Outcome{}
	}
	return outcome
}
