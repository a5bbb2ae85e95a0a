package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
)

// GetSettingsHandler returns the current settings.
func GetSettingsHandler(settings *config.SettingsStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, settings.Get())
	}
}

// UpdateSettingsHandler applies a partial JSON document on top of the current settings.
// Nothing is changed unless the result is valid.
func UpdateSettingsHandler(settings *config.SettingsStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := settings.Get()
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, logger, fmt.Errorf("%w: %w", models.ErrInvalidSettings, err))
			return
		}

		updated, err := settings.Update(func(s *config.Settings) { *s = next })
		if err != nil {
			writeError(w, logger, err)
			return
		}

		logger.Info("Settings updated: %+v", updated)
		writeJSON(w, logger, http.StatusOK, updated)
	}
}
