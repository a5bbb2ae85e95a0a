package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/repository/sqlite"
)

type sightingsEnv struct {
	cfg          *config.Config
	sightings    *sqlite.SightingRepository
	recognitions *sqlite.RecognitionRepository
	log          *logger.Logger
}

func newSightingsEnv(t *testing.T) sightingsEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := sightingsEnv{
		cfg:          &config.Config{SightingsDir: t.TempDir()},
		sightings:    sqlite.NewSightingRepository(db),
		recognitions: sqlite.NewRecognitionRepository(db),
		log:          logger.NewDiscard(),
	}
	return env
}

func (e sightingsEnv) add(t *testing.T, filename, camera string, ts time.Time, name string) int64 {
	t.Helper()
	path := filepath.Join(e.cfg.SightingsDir, filename)
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))

	id, err := e.sightings.Insert(&models.Sighting{Filename: filename, Camera: camera, Timestamp: ts, FilePath: path, FileSize: 4})
	require.NoError(t, err)
	require.NoError(t, e.recognitions.InsertBatch([]models.Recognition{{SightingID: id, FaceID: name + "-id", Name: name}}))
	return id
}

func TestSightingsHandlerPagesAndFilters(t *testing.T) {
	env := newSightingsEnv(t)
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	env.add(t, "a.jpg", "door", day, "Alice")
	env.add(t, "b.jpg", "garage", day.Add(24*time.Hour), "Bob")
	env.add(t, "c.jpg", "door", day.Add(48*time.Hour), "Alice")

	get := func(query string) sightingsPage {
		rec := httptest.NewRecorder()
		SightingsHandler(env.sightings, env.recognitions, env.log)(rec, httptest.NewRequest(http.MethodGet, "/api/sightings?"+query, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var page sightingsPage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		return page
	}

	page := get("limit=2")
	assert.Equal(t, 3, page.Length)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Sightings, 2)
	assert.Equal(t, "c.jpg", page.Sightings[0].Filename)
	require.Len(t, page.Sightings[0].Faces, 1)
	assert.Equal(t, "Alice", page.Sightings[0].Faces[0].Name)

	page = get("limit=2&page=2")
	require.Len(t, page.Sightings, 1)
	assert.Equal(t, "a.jpg", page.Sightings[0].Filename)

	page = get("name=Alice&camera=door")
	assert.Equal(t, 2, page.Length)

	page = get("dateBefore=2026-03-11")
	assert.Equal(t, 2, page.Length)

	page = get("dateAfter=2026-03-11&dateBefore=2026-03-11")
	require.Len(t, page.Sightings, 1)
	assert.Equal(t, "b.jpg", page.Sightings[0].Filename)
}

func TestSightingFiltersHandler(t *testing.T) {
	env := newSightingsEnv(t)

	rec := httptest.NewRecorder()
	SightingFiltersHandler(env.sightings, env.recognitions, env.log)(rec, httptest.NewRequest(http.MethodGet, "/api/sightings/filters", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cameras":[],"names":[]}`, rec.Body.String())

	env.add(t, "a.jpg", "door", time.Now(), "Alice")
	rec = httptest.NewRecorder()
	SightingFiltersHandler(env.sightings, env.recognitions, env.log)(rec, httptest.NewRequest(http.MethodGet, "/api/sightings/filters", nil))
	assert.JSONEq(t, `{"cameras":["door"],"names":["Alice"]}`, rec.Body.String())
}

func TestViewAndDeleteSighting(t *testing.T) {
	env := newSightingsEnv(t)
	id := env.add(t, "a.jpg", "door", time.Now(), "Alice")
	env.add(t, "b.jpg", "door", time.Now(), "Bob")
	idParam := "?id=" + itoa(id)

	rec := httptest.NewRecorder()
	ViewSightingHandler(env.cfg, env.sightings, env.log)(rec, httptest.NewRequest(http.MethodGet, "/api/sightings/view"+idParam, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = httptest.NewRecorder()
	ViewSightingHandler(env.cfg, env.sightings, env.log)(rec, httptest.NewRequest(http.MethodGet, "/api/sightings/view?id=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	DeleteSightingHandler(env.cfg, env.sightings, env.log)(rec, httptest.NewRequest(http.MethodDelete, "/api/sightings"+idParam, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoFileExists(t, filepath.Join(env.cfg.SightingsDir, "a.jpg"))

	rec = httptest.NewRecorder()
	DeleteSightingHandler(env.cfg, env.sightings, env.log)(rec, httptest.NewRequest(http.MethodDelete, "/api/sightings"+idParam, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	DeleteSightingHandler(env.cfg, env.sightings, env.log)(rec, httptest.NewRequest(http.MethodDelete, "/api/sightings", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	count, err := env.sightings.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	entries, err := os.ReadDir(env.cfg.SightingsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
