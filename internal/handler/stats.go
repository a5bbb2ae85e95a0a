package handler

import (
	"net/http"

	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/repository"
	"facewatch/internal/service"
)

type sessionView struct {
	models.SessionStats
	RecognitionRate float64 `json:"recognition_rate"`
}

// StatsHandler returns the live session counters, the all-time totals and the gallery size.
func StatsHandler(manager *service.Manager, sessions repository.SessionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := manager.Tracker().Snapshot()

		resp := map[string]interface{}{
			"session":          sessionView{SessionStats: snapshot, RecognitionRate: snapshot.RecognitionRate()},
			"registered_faces": manager.Store().Len(),
			"dropped_frames":   manager.DroppedFrames(),
		}

		if sessions != nil {
			totals, err := sessions.Totals()
			if err != nil {
				logger.Error("Error computing session totals: %v", err)
			} else {
				resp["totals"] = totals
			}
		}

		writeJSON(w, logger, http.StatusOK, resp)
	}
}
