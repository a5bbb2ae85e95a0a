package capture

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"facewatch/internal/config"
	"facewatch/internal/logger"
)

// FrameSink takes ownership of captured frames.
type FrameSink interface {
	HandleFrame(frame gocv.Mat, camera string)
}

// DeviceSource reads frames from a local camera.
type DeviceSource struct {
	device     int
	name       string
	resolution config.Resolution
	logger     *logger.Logger
}

// NewDeviceSource creates a source for the camera with the given index.
func NewDeviceSource(device int, resolution config.Resolution, logger *logger.Logger) *DeviceSource {
	return &DeviceSource{
		device:     device,
		name:       fmt.Sprintf("device_%d", device),
		resolution: resolution,
		logger:     logger,
	}
}

// Name is the camera name attached to frames from this source.
func (s *DeviceSource) Name() string {
	return s.name
}

// Run captures frames into sink until ctx is done.
func (s *DeviceSource) Run(ctx context.Context, sink FrameSink) error {
	webcam, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", s.device, err)
	}
	defer webcam.Close()

	width, height := s.resolution.Dimensions()
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	s.logger.Info("Camera %d opened at %dx%d", s.device, width, height)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame := gocv.NewMat()
		if ok := webcam.Read(&frame); !ok || frame.Empty() {
			frame.Close()
			failures++
			if failures == 1 || failures%100 == 0 {
				s.logger.Warning("Camera %d returned no frame (%d in a row)", s.device, failures)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		failures = 0
		sink.HandleFrame(frame, s.name)
	}
}
