package ai

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"facewatch/internal/models"
)

type galleryEntry struct {
	rec      models.FaceRecord
	template gocv.Mat
}

type memoryGallery []galleryEntry

func (g memoryGallery) VisitTemplates(fn func(models.FaceRecord, gocv.Mat) bool) {
	for _, e := range g {
		if !fn(e.rec, e.template) {
			return
		}
	}
}

func noise(t *testing.T, seed int64, rows, cols int) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, rows*cols)
	rng.Read(data)
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, data)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func entry(id, name string, m gocv.Mat) galleryEntry {
	return galleryEntry{rec: models.FaceRecord{ID: id, Name: name}, template: m}
}

func TestRecognizeEmptyGallery(t *testing.T) {
	out, err := NewRecognizer().Recognize(noise(t, 1, 48, 48), memoryGallery{}, 0.5)
	require.NoError(t, err)
	assert.False(t, out.Identified())
	assert.Zero(t, out.Score)
}

func TestRecognizeSelfMatch(t *testing.T) {
	alice := noise(t, 1, 48, 48)
	gallery := memoryGallery{entry("a", "Alice", alice), entry("b", "Bob", noise(t, 2, 48, 48))}

	out, err := NewRecognizer().Recognize(alice, gallery, 0.5)
	require.NoError(t, err)
	assert.True(t, out.Identified())
	assert.Equal(t, "a", out.FaceID)
	assert.Equal(t, "Alice", out.Name)
	assert.InDelta(t, 1.0, out.Score, 1e-3)
}

func TestRecognizeRejectsUnrelatedFace(t *testing.T) {
	gallery := memoryGallery{entry("a", "Alice", noise(t, 1, 48, 48))}

	out, err := NewRecognizer().Recognize(noise(t, 99, 48, 48), gallery, 0.5)
	require.NoError(t, err)
	assert.False(t, out.Identified())
	assert.Less(t, out.Score, 0.5)
}

func TestRecognizeResizesTemplate(t *testing.T) {
	alice := noise(t, 1, 40, 40)
	query := gocv.NewMat()
	defer query.Close()
	gocv.Resize(alice, &query, image.Pt(80, 80), 0, 0, gocv.InterpolationLinear)

	out, err := NewRecognizer().Recognize(query, memoryGallery{entry("a", "Alice", alice)}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "Alice", out.Name)
	assert.Greater(t, out.Score, 0.9)
}

func TestRecognizeAcceptsColorQuery(t *testing.T) {
	alice := noise(t, 1, 32, 32)
	color := gocv.NewMat()
	defer color.Close()
	require.NoError(t, gocv.CvtColor(alice, &color, gocv.ColorGrayToBGR))

	out, err := NewRecognizer().Recognize(color, memoryGallery{entry("a", "Alice", alice)}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "Alice", out.Name)
}

func TestRecognizeTieGoesToEarliestEnrollment(t *testing.T) {
	face := noise(t, 1, 32, 32)
	twin := face.Clone()
	defer twin.Close()

	gallery := memoryGallery{entry("first", "Alice", face), entry("second", "Alice", twin)}
	out, err := NewRecognizer().Recognize(face, gallery, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "first", out.FaceID)
}

func TestRecognizeThresholdIsMonotonic(t *testing.T) {
	alice := noise(t, 1, 32, 32)
	gallery := memoryGallery{entry("a", "Alice", alice), entry("b", "Bob", noise(t, 2, 32, 32))}

	// Blend alice with unrelated noise so scores land across the threshold range.
	queries := make([]gocv.Mat, 0, 5)
	for i, weight := range []float64{1, 0.8, 0.6, 0.4, 0.2} {
		blended := gocv.NewMat()
		t.Cleanup(func() { blended.Close() })
		gocv.AddWeighted(alice, weight, noise(t, int64(10+i), 32, 32), 1-weight, 0, &blended)
		queries = append(queries, blended)
	}

	rec := NewRecognizer()
	thresholds := []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	for _, q := range queries {
		previous := true
		for _, th := range thresholds {
			out, err := rec.Recognize(q, gallery, th)
			require.NoError(t, err)
			if out.Identified() {
				assert.True(t, previous, "identified at %.1f but not at a lower threshold", th)
				assert.Greater(t, out.Score, th)
			}
			previous = out.Identified()
		}
	}
}

func TestRecognizeValidatesInput(t *testing.T) {
	rec := NewRecognizer()
	face := noise(t, 1, 16, 16)

	for _, th := range []float64{0.29, 0.91, -1} {
		_, err := rec.Recognize(face, memoryGallery{}, th)
		assert.ErrorIs(t, err, models.ErrInvalidThreshold)
	}
	for _, th := range []float64{0.3, 0.9} {
		_, err := rec.Recognize(face, memoryGallery{}, th)
		assert.NoError(t, err)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	_, err := rec.Recognize(empty, memoryGallery{}, 0.5)
	assert.ErrorIs(t, err, models.ErrEmptyImage)
}

func TestSimilarityEmptyTemplate(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, ok := Similarity(noise(t, 1, 16, 16), empty)
	assert.False(t, ok)
}
