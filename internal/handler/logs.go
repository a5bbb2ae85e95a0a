package handler

import (
	"net/http"
	"os"

	"facewatch/internal/logger"
)

// ShowLogsHandler serves the log file of the level in the {level} path segment as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logger.ParseLevel(r.PathValue("level"))
		if !ok || log.Path(level) == "" {
			http.NotFound(w, r)
			return
		}

		filePath := log.Path(level)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.Error(w, "Log file not found: "+level.FileName(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file of the level in the {level} path segment.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logger.ParseLevel(r.PathValue("level"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		if err := log.CleanLogs(level); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
