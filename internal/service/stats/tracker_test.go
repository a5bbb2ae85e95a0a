package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecognitionRate(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	tracker := NewTrackerWithClock(func() time.Time { return clock })

	for i := 1; i <= 3; i++ {
		clock = start.Add(time.Duration(i) * time.Second)
		tracker.Update(true)
	}
	clock = start.Add(10 * time.Second)
	tracker.Update(false)

	s := tracker.Snapshot()
	assert.Equal(t, start, s.StartedAt)
	assert.EqualValues(t, 4, s.TotalDetections)
	assert.EqualValues(t, 3, s.SuccessfulRecognitions)
	assert.InDelta(t, 75.0, s.RecognitionRate(), 1e-9)
	require.NotNil(t, s.LastDetectionTime)
	assert.Equal(t, start.Add(10*time.Second), *s.LastDetectionTime)
}

func TestTrackerFreshSession(t *testing.T) {
	s := NewTracker().Snapshot()
	assert.Zero(t, s.TotalDetections)
	assert.Nil(t, s.LastDetectionTime)
	assert.Zero(t, s.RecognitionRate())
	assert.False(t, s.StartedAt.IsZero())
}

func TestTrackerEnrollments(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordEnrollment()
	tracker.RecordEnrollment()

	s := tracker.Snapshot()
	assert.EqualValues(t, 2, s.RegistrationCount)
	assert.Zero(t, s.TotalDetections)
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(false)

	s := tracker.Snapshot()
	*s.LastDetectionTime = time.Time{}
	assert.False(t, tracker.Snapshot().LastDetectionTime.IsZero())
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.Update(i%2 == 0)
		}(i)
	}
	wg.Wait()

	s := tracker.Snapshot()
	assert.EqualValues(t, 50, s.TotalDetections)
	assert.EqualValues(t, 25, s.SuccessfulRecognitions)
}
