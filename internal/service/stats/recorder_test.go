package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

type memorySessions struct {
	mu    sync.Mutex
	saved map[int64]models.SessionStats
	ended map[int64]time.Time
}

func newMemorySessions() *memorySessions {
	return &memorySessions{saved: map[int64]models.SessionStats{}, ended: map[int64]time.Time{}}
}

func (m *memorySessions) Create(stats models.SessionStats) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.saved) + 1)
	m.saved[id] = stats
	return id, nil
}

func (m *memorySessions) Save(id int64, stats models.SessionStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = stats
	return nil
}

func (m *memorySessions) End(id int64, stats models.SessionStats, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = stats
	m.ended[id] = at
	return nil
}

func (m *memorySessions) GetAll(int) ([]models.Session, error)  { return nil, nil }
func (m *memorySessions) Totals() (*models.StatsTotals, error) { return &models.StatsTotals{}, nil }

func (m *memorySessions) get(id int64) (models.SessionStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ended := m.ended[id]
	return m.saved[id], ended
}

func TestRecorderSavesOnShutdown(t *testing.T) {
	repo := newMemorySessions()
	tracker := NewTracker()

	rec, err := NewRecorder(tracker, repo, time.Hour, logger.NewDiscard())
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.SessionID())

	tracker.Update(true)
	tracker.RecordEnrollment()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	saved, ended := repo.get(rec.SessionID())
	assert.True(t, ended)
	assert.EqualValues(t, 1, saved.TotalDetections)
	assert.EqualValues(t, 1, saved.RegistrationCount)
}

func TestRecorderSavesPeriodically(t *testing.T) {
	repo := newMemorySessions()
	tracker := NewTracker()

	rec, err := NewRecorder(tracker, repo, 10*time.Millisecond, logger.NewDiscard())
	require.NoError(t, err)
	tracker.Update(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	assert.Eventually(t, func() bool {
		saved, _ := repo.get(rec.SessionID())
		return saved.TotalDetections == 1
	}, time.Second, 5*time.Millisecond)
}
