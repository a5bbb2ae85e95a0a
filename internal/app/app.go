package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/handler"
	"facewatch/internal/logger"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/routes"
	"facewatch/internal/service"
	"facewatch/internal/service/ai"
	"facewatch/internal/service/backup"
	"facewatch/internal/service/capture"
	"facewatch/internal/service/stats"
	"facewatch/internal/service/storage"
	"facewatch/internal/service/websocket"
	"facewatch/internal/storage/minio"
)

const shutdownTimeout = 10 * time.Second

// Core is the face store, detector, pipeline and backups, shared by the server and the CLI.
type Core struct {
	Config   *config.Config
	Logger   *logger.Logger
	Settings *config.SettingsStore
	Detector *ai.DetectorService
	Store    *storage.FaceStore
	Tracker  *stats.Tracker
	Backups  *backup.Manager
	Manager  *service.Manager
}

// CoreOptions are the optional collaborators of a Core.
type CoreOptions struct {
	Hub     service.Broadcaster
	Sink    service.SightingSink
	Offsite bool
}

// NewCore loads settings, the detection model and the face store. A missing model is logged once
// and leaves detection disabled; everything else must succeed.
func NewCore(ctx context.Context, cfg *config.Config, log *logger.Logger, opts CoreOptions) (*Core, error) {
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}

	detector, err := ai.NewDetectorService(cfg.ModelSearchPaths(), log)
	if err != nil {
		log.Error("%v", err)
	}

	store, err := storage.NewFaceStore(cfg.FacesDir, log)
	if err != nil {
		return nil, err
	}

	var offsite backup.Offsite
	if opts.Offsite && cfg.Storage.Enabled() {
		client, err := minio.New(ctx, cfg.Storage)
		if err != nil {
			log.Warning("Offsite backups disabled: %v", err)
		} else {
			offsite = client
		}
	}

	tracker := stats.NewTracker()
	backups := backup.NewManager(cfg.FacesDir, cfg.BackupDir, settings, store, offsite, log)
	manager := service.NewManager(cfg, settings, detector, store, tracker, backups, opts.Hub, opts.Sink, log)

	return &Core{
		Config:   cfg,
		Logger:   log,
		Settings: settings,
		Detector: detector,
		Store:    store,
		Tracker:  tracker,
		Backups:  backups,
		Manager:  manager,
	}, nil
}

// Close releases the detection model.
func (c *Core) Close() error {
	return c.Detector.Close()
}

// App is the HTTP server with its camera inputs and background workers.
type App struct {
	*Core
	db       *sqlite.DB
	hub      *websocket.HubService
	buffer   *storage.SightingBuffer
	recorder *stats.Recorder
	server   *http.Server
}

// NewApp wires every component from the environment.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}
	sightingRepo := sqlite.NewSightingRepository(db)
	recognitionRepo := sqlite.NewRecognitionRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)

	hub := websocket.NewHubService(log)
	buffer := storage.NewSightingBuffer(cfg, log, sightingRepo, recognitionRepo)

	core, err := NewCore(ctx, cfg, log, CoreOptions{Hub: hub, Sink: buffer, Offsite: true})
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	recorder, err := stats.NewRecorder(core.Tracker, sessionRepo, cfg.StatsSaveInterval, log)
	if err != nil {
		core.Close()
		db.Close()
		log.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	router := routes.SetupRoutes(routes.Deps{
		Config:       cfg,
		Manager:      core.Manager,
		Hub:          hub,
		Sightings:    sightingRepo,
		Recognitions: recognitionRepo,
		Sessions:     sessionRepo,
		Logger:       log,
	})

	return &App{
		Core:     core,
		db:       db,
		hub:      hub,
		buffer:   buffer,
		recorder: recorder,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is done, then shuts down gracefully: workers stop between frames, the
// session and pending sightings are saved, and an automatic backup is taken when enabled.
func (a *App) Run(ctx context.Context) error {
	workers, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(workers)
		}()
	}

	spawn(a.hub.Run)
	spawn(a.buffer.Run)
	spawn(a.recorder.Run)
	spawn(a.Manager.Run)
	spawn(func(ctx context.Context) {
		if err := handler.UDPCameraHandler(ctx, a.Manager, a.Logger, a.Config); err != nil {
			a.Logger.Error("Camera listener stopped: %v", err)
		}
	})
	if a.Config.CameraDevice >= 0 {
		device := capture.NewDeviceSource(a.Config.CameraDevice, a.Settings.Get().CameraResolution, a.Logger)
		spawn(func(ctx context.Context) {
			if err := device.Run(ctx, a.Manager); err != nil {
				a.Logger.Error("Local camera stopped: %v", err)
			}
		})
	}

	a.Logger.Info("Facewatch server listening on %s (faces: %d, model: %s)", a.server.Addr, a.Store.Len(), a.Detector.ModelPath())

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("HTTP shutdown: %v", err)
	}

	cancel()
	wg.Wait()

	if a.Settings.Get().AutoBackup {
		if archive, err := a.Manager.Backup(context.Background()); err != nil {
			a.Logger.Error("Automatic backup failed: %v", err)
		} else {
			a.Logger.Info("Automatic backup written to %s", archive)
		}
	}

	a.Core.Close()
	if err := a.db.Close(); err != nil {
		a.Logger.Error("Closing database: %v", err)
	}
	a.Logger.Close()
	return runErr
}
