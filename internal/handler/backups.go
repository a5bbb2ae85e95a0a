package handler

import (
	"net/http"
	"path/filepath"

	"facewatch/internal/logger"
	"facewatch/internal/service"
)

// ListBackupsHandler lists local archives, newest first.
func ListBackupsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backups, err := manager.Backups().ListBackups()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, backups)
	}
}

// CreateBackupHandler archives the face store and settings.
func CreateBackupHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archive, err := manager.Backup(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, map[string]string{
			"name": filepath.Base(archive),
			"path": archive,
		})
	}
}

// RestoreBackupHandler restores the archive named by the "name" form value.
func RestoreBackupHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.FormValue("name")
		archive, err := manager.Backups().Resolve(name)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		if err := manager.Restore(r.Context(), archive); err != nil {
			writeError(w, logger, err)
			return
		}

		logger.Info("Restored backup %s via API", name)
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{
			"restored": name,
			"faces":    manager.Store().Len(),
		})
	}
}
