package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/repository"
)

type sightingInfo struct {
	models.Sighting
	Faces []models.Recognition `json:"faces"`
}

type sightingsPage struct {
	Sightings   []sightingInfo `json:"sightings"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
	Limit       int            `json:"limit"`
}

// SightingsHandler returns a filtered page of stored sightings, newest first.
// Query: page, limit, camera, name, dateAfter, dateBefore (inclusive, YYYY-MM-DD).
func SightingsHandler(sightings repository.SightingRepository, recognitions repository.RecognitionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &models.SightingFilter{
			Camera:    q.Get("camera"),
			Name:      q.Get("name"),
			StartDate: parseDate(q.Get("dateAfter")),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}
		if end := parseDate(q.Get("dateBefore")); !end.IsZero() {
			filter.EndDate = end.Add(24 * time.Hour)
		}

		list, err := sightings.GetAll(filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		total, err := sightings.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting sightings: %v", err)
			total = len(list)
		}

		infos := make([]sightingInfo, 0, len(list))
		for _, s := range list {
			faces, err := recognitions.GetBySightingID(s.ID)
			if err != nil {
				logger.Error("Error loading recognitions for sighting %d: %v", s.ID, err)
			}
			if faces == nil {
				faces = []models.Recognition{}
			}
			infos = append(infos, sightingInfo{Sighting: s, Faces: faces})
		}

		writeJSON(w, logger, http.StatusOK, sightingsPage{
			Sightings:   infos,
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// SightingFiltersHandler returns the cameras and names that can be filtered on.
func SightingFiltersHandler(sightings repository.SightingRepository, recognitions repository.RecognitionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameras, err := sightings.GetCameras()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		names, err := recognitions.GetAllNames()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if cameras == nil {
			cameras = []string{}
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, logger, http.StatusOK, map[string][]string{"cameras": cameras, "names": names})
	}
}

// DeleteSightingHandler removes one sighting ("id") or, without an id, every sighting.
func DeleteSightingHandler(cfg *config.Config, sightings repository.SightingRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idParam := r.URL.Query().Get("id")
		if idParam == "" {
			clearSightings(w, cfg, sightings, logger)
			return
		}

		id, err := strconv.ParseInt(idParam, 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		s, err := sightings.GetByID(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if s == nil {
			http.NotFound(w, r)
			return
		}

		if err := os.Remove(filepath.Join(cfg.SightingsDir, filepath.Base(s.Filename))); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", s.Filename, err)
		}
		if err := sightings.Delete(id); err != nil {
			writeError(w, logger, err)
			return
		}

		logger.Info("Deleted sighting: %s", s.Filename)
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearSightings(w http.ResponseWriter, cfg *config.Config, sightings repository.SightingRepository, logger *logger.Logger) {
	files, err := os.ReadDir(cfg.SightingsDir)
	if err != nil && !os.IsNotExist(err) {
		logger.Error("Error reading sightings directory: %v", err)
		http.Error(w, "Unable to read sightings directory", http.StatusInternalServerError)
		return
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(cfg.SightingsDir, file.Name())); err != nil {
			logger.Error("Error deleting file %s: %v", file.Name(), err)
		}
	}

	if err := sightings.DeleteAll(); err != nil {
		writeError(w, logger, err)
		return
	}

	logger.Info("All sightings cleared from directory: %s", cfg.SightingsDir)
	w.WriteHeader(http.StatusNoContent)
}

// ViewSightingHandler serves the stored JPEG of a sighting ("id").
func ViewSightingHandler(cfg *config.Config, sightings repository.SightingRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "id parameter is required", http.StatusBadRequest)
			return
		}

		s, err := sightings.GetByID(id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if s == nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, filepath.Join(cfg.SightingsDir, filepath.Base(s.Filename)))
	}
}
