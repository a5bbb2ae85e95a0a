package ai

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"facewatch/internal/config"
	"facewatch/internal/models"
)

// Gallery exposes enrolled templates to the recognizer.
type Gallery interface {
	// VisitTemplates calls fn with each readable grayscale template in enrollment order until fn
	// returns false. Unreadable templates are skipped. The template is only valid during the call.
	VisitTemplates(fn func(rec models.FaceRecord, template gocv.Mat) bool)
}

// Recognizer matches a face against a gallery with normalized cross-correlation
// (TM_CCOEFF_NORMED). Every template is compared; there is no index.
type Recognizer struct{}

// NewRecognizer creates a Recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// Recognize returns the best-scoring gallery record if its score strictly exceeds threshold.
// On equal scores the earliest enrolled record wins.
func (r *Recognizer) Recognize(face gocv.Mat, gallery Gallery, threshold float64) (models.Outcome, error) {
	if threshold < config.MinThreshold || threshold > config.MaxThreshold {
		return models.Outcome{}, fmt.Errorf("%w: %.2f", models.ErrInvalidThreshold, threshold)
	}
	if face.Empty() {
		return models.Outcome{}, models.ErrEmptyImage
	}

	query := face
	if face.Channels() != 1 {
		gray, err := ToGray(face)
		if err != nil {
			return models.Outcome{}, err
		}
		defer gray.Close()
		query = gray
	}

	var (
		best      models.FaceRecord
		bestScore = math.Inf(-1)
		found     bool
	)
	gallery.VisitTemplates(func(rec models.FaceRecord, template gocv.Mat) bool {
		score, ok := Similarity(query, template)
		if ok && score > bestScore {
			best, bestScore, found = rec, score, true
		}
		return true
	})

	if !found {
		return models.Outcome{}, nil
	}
	outcome := models.Outcome{Score: bestScore}
	if bestScore > threshold {
		outcome.FaceID = best.ID
		outcome.Name = best.Name
	}
	return outcome, nil
}

// Similarity resizes template to the query's shape and returns the maximum of the
// TM_CCOEFF_NORMED surface. ok is false when no comparable score could be computed.
func Similarity(query, template gocv.Mat) (score float64, ok bool) {
	if query.Empty() || template.Empty() {
		return 0, false
	}

	tmpl := template
	if template.Rows() != query.Rows() || template.Cols() != query.Cols() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(template, &resized, image.Pt(query.Cols(), query.Rows()), 0, 0, gocv.InterpolationLinear)
		if resized.Empty() {
			return 0, false
		}
		tmpl = resized
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(query, tmpl, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return 0, false
	}

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	v := float64(maxVal)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
