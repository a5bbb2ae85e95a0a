package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"facewatch/internal/models"
)

func TestDrawOutcomeMarksRegion(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.Outcome
	}{
		{"unrecognized", models.Outcome{Region: models.Region{X: 10, Y: 30, Width: 40, Height: 40}}},
		{"identified", models.Outcome{Region: models.Region{X: 10, Y: 30, Width: 40, Height: 40}, FaceID: "a", Name: "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
			defer frame.Close()

			require.NoError(t, DrawOutcome(&frame, tt.outcome))
			gray, err := ToGray(frame)
			require.NoError(t, err)
			defer gray.Close()
			assert.Positive(t, gocv.CountNonZero(gray))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	frame := gocv.NewMatWithSize(30, 50, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for _, enc := range []func(gocv.Mat) ([]byte, error){EncodeJPEG, EncodePNG} {
		data, err := enc(frame)
		require.NoError(t, err)

		decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
		require.NoError(t, err)
		assert.Equal(t, 30, decoded.Rows())
		assert.Equal(t, 50, decoded.Cols())
		decoded.Close()
	}
}
