package ai

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"facewatch/internal/models"
)

var (
	boxColor  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	nameColor = color.RGBA{R: 12, G: 255, B: 36, A: 0}
)

// DrawOutcome draws the region boundary and, for identified faces, the name above it.
func DrawOutcome(mat *gocv.Mat, outcome models.Outcome) error {
	r := outcome.Region
	if err := gocv.Rectangle(mat, r.Rect(), boxColor, 2); err != nil {
		return fmt.Errorf("failed to draw rectangle: %w", err)
	}
	if !outcome.Identified() {
		return nil
	}

	pt := image.Pt(r.X, max(r.Y-10, 12))
	if err := gocv.PutText(mat, outcome.Name, pt, gocv.FontHersheySimplex, 0.9, nameColor, 2); err != nil {
		return fmt.Errorf("failed to draw text: %w", err)
	}
	return nil
}

// EncodeJPEG re-encodes mat into a standalone JPEG buffer.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	return encode(gocv.JPEGFileExt, mat)
}

// EncodePNG re-encodes mat into a standalone PNG buffer.
func EncodePNG(mat gocv.Mat) ([]byte, error) {
	return encode(gocv.PNGFileExt, mat)
}

func encode(ext gocv.FileExt, mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
