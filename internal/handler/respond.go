package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoFaceDetected),
		errors.Is(err, models.ErrAmbiguousDetection),
		errors.Is(err, models.ErrInvalidSensitivity),
		errors.Is(err, models.ErrInvalidThreshold),
		errors.Is(err, models.ErrInvalidSettings),
		errors.Is(err, models.ErrInvalidName),
		errors.Is(err, models.ErrEmptyImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and sends err with its mapped status.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts s to int or returns def when conversion fails or the value is <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses an HTML date input ("2006-01-02"). Invalid input yields the zero time.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
