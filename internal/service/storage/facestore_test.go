package storage

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

func noiseMat(t *testing.T, seed int64, rows, cols int) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, rows*cols)
	rng.Read(data)
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, data)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func newTestStore(t *testing.T, dir string) *FaceStore {
	t.Helper()
	store, err := NewFaceStore(dir, logger.NewDiscard())
	require.NoError(t, err)
	return store
}

func rasterFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+rasterExt))
	require.NoError(t, err)
	return matches
}

func TestFaceStoreEnrollAndRemove(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	id, err := store.Enroll("  Alice ", noiseMat(t, 1, 48, 48))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, []models.FaceEntry{{ID: id, Name: "Alice"}}, store.List())
	rec, ok := store.Get(id)
	require.True(t, ok)
	assert.FileExists(t, store.RasterPath(rec))
	assert.FileExists(t, filepath.Join(dir, SnapshotFileName))

	require.NoError(t, store.Remove(id))
	assert.Empty(t, store.List())
	assert.NoFileExists(t, store.RasterPath(rec))

	err = store.Remove(id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFaceStoreRemoveKeepsGoingWhenRasterStays(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	id, err := store.Enroll("Alice", noiseMat(t, 1, 48, 48))
	require.NoError(t, err)
	rec, ok := store.Get(id)
	require.True(t, ok)

	raster := store.RasterPath(rec)
	require.NoError(t, os.Remove(raster))
	require.NoError(t, os.MkdirAll(filepath.Join(raster, "pinned"), 0755))

	require.NoError(t, store.Remove(id))
	assert.Empty(t, store.List())
	assert.DirExists(t, raster)

	reopened := newTestStore(t, dir)
	assert.Empty(t, reopened.List())
}

func TestFaceStoreRejectsInvalidInput(t *testing.T) {
	store := newTestStore(t, t.TempDir())

	_, err := store.Enroll("   ", noiseMat(t, 1, 16, 16))
	assert.ErrorIs(t, err, models.ErrInvalidName)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = store.Enroll("Bob", empty)
	assert.ErrorIs(t, err, models.ErrEmptyImage)

	assert.Zero(t, store.Len())
}

func TestFaceStoreDuplicateNamesGetDistinctIDs(t *testing.T) {
	store := newTestStore(t, t.TempDir())

	first, err := store.Enroll("Alice", noiseMat(t, 1, 16, 16))
	require.NoError(t, err)
	second, err := store.Enroll("Alice", noiseMat(t, 2, 16, 16))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, store.Len())
}

func TestFaceStoreReopenPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	for i, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := store.Enroll(name, noiseMat(t, int64(i), 24, 24))
		require.NoError(t, err)
	}
	want := store.Records()

	reopened := newTestStore(t, dir)
	assert.Equal(t, want, reopened.Records())

	reopened.Load()
	reopened.Load()
	assert.Equal(t, want, reopened.Records())
}

func TestFaceStoreCorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotFileName), []byte("{not json"), 0644))

	store := newTestStore(t, dir)
	assert.Zero(t, store.Len())

	_, err := store.Enroll("Alice", noiseMat(t, 1, 16, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, newTestStore(t, dir).Len())
}

func TestFaceStoreLoadDropsRecordsWithoutRaster(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	aliceID, err := store.Enroll("Alice", noiseMat(t, 1, 16, 16))
	require.NoError(t, err)
	bobID, err := store.Enroll("Bob", noiseMat(t, 2, 16, 16))
	require.NoError(t, err)

	alice, _ := store.Get(aliceID)
	require.NoError(t, os.Remove(store.RasterPath(alice)))

	store.Load()
	assert.Equal(t, []models.FaceEntry{{ID: bobID, Name: "Bob"}}, store.List())
}

func TestFaceStoreEnrollRollsBackOnSnapshotFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, SnapshotFileName), 0755))
	store := newTestStore(t, dir)

	_, err := store.Enroll("Alice", noiseMat(t, 1, 16, 16))
	require.ErrorIs(t, err, models.ErrPersistence)

	assert.Zero(t, store.Len())
	assert.Empty(t, rasterFiles(t, dir))
}

func TestFaceStoreVisitTemplatesSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	aliceID, err := store.Enroll("Alice", noiseMat(t, 1, 20, 30))
	require.NoError(t, err)
	bobID, err := store.Enroll("Bob", noiseMat(t, 2, 20, 30))
	require.NoError(t, err)

	alice, _ := store.Get(aliceID)
	require.NoError(t, os.WriteFile(store.RasterPath(alice), []byte("garbage"), 0644))

	var visited []string
	store.VisitTemplates(func(rec models.FaceRecord, template gocv.Mat) bool {
		visited = append(visited, rec.ID)
		assert.Equal(t, 1, template.Channels())
		assert.Equal(t, 20, template.Rows())
		assert.Equal(t, 30, template.Cols())
		return true
	})
	assert.Equal(t, []string{bobID}, visited)
}

func TestFaceStoreVisitTemplatesStopsEarly(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	for i := range 3 {
		_, err := store.Enroll("face", noiseMat(t, int64(i), 16, 16))
		require.NoError(t, err)
	}

	calls := 0
	store.VisitTemplates(func(models.FaceRecord, gocv.Mat) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}
