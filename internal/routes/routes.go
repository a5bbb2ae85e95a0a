package routes

import (
	"net/http"

	"facewatch/internal/config"
	"facewatch/internal/handler"
	"facewatch/internal/logger"
	"facewatch/internal/middleware"
	"facewatch/internal/repository"
	"facewatch/internal/service"
	"facewatch/internal/service/websocket"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Config       *config.Config
	Manager      *service.Manager
	Hub          *websocket.HubService
	Sightings    repository.SightingRepository
	Recognitions repository.RecognitionRepository
	Sessions     repository.SessionRepository
	Logger       *logger.Logger
}

// SetupRoutes registers the API endpoints and wraps the mux with the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	cfg, m, log := d.Config, d.Manager, d.Logger

	// Live view
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(d.Hub, log))

	// Gallery
	mux.HandleFunc("GET /api/faces", handler.ListFacesHandler(m, log))
	mux.HandleFunc("POST /api/faces", handler.EnrollFaceHandler(m, log))
	mux.HandleFunc("DELETE /api/faces", handler.DeleteFaceHandler(m, log))
	mux.HandleFunc("GET /api/faces/image", handler.FaceImageHandler(m))
	mux.HandleFunc("POST /api/recognize", handler.RecognizeHandler(m, log))

	// Stats and settings
	mux.HandleFunc("GET /api/stats", handler.StatsHandler(m, d.Sessions, log))
	mux.HandleFunc("GET /api/settings", handler.GetSettingsHandler(m.Settings(), log))
	mux.HandleFunc("PUT /api/settings", handler.UpdateSettingsHandler(m.Settings(), log))

	// Backups
	mux.HandleFunc("GET /api/backups", handler.ListBackupsHandler(m, log))
	mux.HandleFunc("POST /api/backups", handler.CreateBackupHandler(m, log))
	mux.HandleFunc("POST /api/backups/restore", handler.RestoreBackupHandler(m, log))

	// Sightings
	mux.HandleFunc("GET /api/sightings", handler.SightingsHandler(d.Sightings, d.Recognitions, log))
	mux.HandleFunc("GET /api/sightings/filters", handler.SightingFiltersHandler(d.Sightings, d.Recognitions, log))
	mux.HandleFunc("GET /api/sightings/view", handler.ViewSightingHandler(cfg, d.Sightings, log))
	mux.HandleFunc("DELETE /api/sightings", handler.DeleteSightingHandler(cfg, d.Sightings, log))

	// Logs
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(log))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(log))

	// Auth
	mux.HandleFunc("POST /auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("POST /auth/logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(cfg.Password, mux)
}
