package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"inventorycounter/internal/config"
	"inventorycounter/internal/inventory"
	"inventorycounter/internal/logger"
	"inventorycounter/internal/repository/sqlite"
	"inventorycounter/internal/route"
	"inventorycounter/internal/service/ai"
	"inventorycounter/internal/service/metrics"
	"inventorycounter/internal/service/pipeline"
	"inventorycounter/internal/service/storage"
	"inventorycounter/internal/service/vision"
	"inventorycounter/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	camera        *vision.Camera
	detector      pipeline.Detector
	coordinator   *pipeline.Coordinator
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	metrics       *metrics.Metrics
	server        *http.Server
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ledgerRepo := sqlite.NewLedgerRepository(db)
	movementRepo := sqlite.NewMovementRepository(db)
	evidenceRepo := sqlite.NewEvidenceRepository(db)

	reconciler, err := inventory.NewReconciler(context.Background(), ledgerRepo, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	detector, err := newDetector(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	camera, err := vision.OpenCamera(cfg, log)
	if err != nil {
		closeDetector(detector)
		db.Close()
		return nil, err
	}

	m := metrics.New()
	hub := websocket.NewHubService(log, m)
	buffer := storage.NewBufferService(cfg, log, evidenceRepo)

	coordinator := pipeline.NewCoordinator(pipeline.OptionsFromConfig(cfg), pipeline.Deps{
		Frames:     camera,
		Detector:   detector,
		Reconciler: reconciler,
		Display:    hub,
		Evidence:   buffer,
		Journal:    movementRepo,
		Metrics:    m,
		Logger:     log,
	})

	router := route.SetupRoutes(cfg, log, route.Deps{
		Counter:      coordinator,
		Hub:          hub,
		Annotate:     vision.Annotate,
		LedgerRepo:   ledgerRepo,
		MovementRepo: movementRepo,
		EvidenceRepo: evidenceRepo,
		Metrics:      m.Handler(),
	})

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		camera:        camera,
		detector:      detector,
		coordinator:   coordinator,
		bufferService: buffer,
		hubService:    hub,
		metrics:       m,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: router,
		},
	}, nil
}

func newDetector(cfg *config.Config, log *logger.Logger) (pipeline.Detector, error) {
	switch cfg.DetectorBackend {
	case "local":
		detector, err := vision.NewDNNDetector(cfg, log)
		if err != nil {
			return nil, err
		}
		return detector, nil
	default:
		client, err := ai.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		log.Info("🤖 Remote detection at %s (model %s)", cfg.InferenceURL, cfg.InferenceModel)
		return client, nil
	}
}

func closeDetector(detector pipeline.Detector) {
	if closer, ok := detector.(io.Closer); ok {
		closer.Close()
	}
}

// Run serves until ctx is done, then shuts the server and background services down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	background := make(chan struct{}, 3)
	start := func(fn func(context.Context)) {
		go func() {
			fn(ctx)
			background <- struct{}{}
		}()
	}
	start(a.bufferService.Run)
	start(a.hubService.Run)
	start(a.coordinator.Run)

	a.logger.Info("🚀 Inventory Counter")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🗄️ Database: %s", a.config.DatabasePath)
	a.logger.Info("📁 Evidence: %s", a.config.EvidenceDirectory)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Warning("HTTP shutdown: %v", shutdownErr)
	}

	cancel()
	for i := 0; i < cap(background); i++ {
		<-background
	}
	return err
}

// Close releases the camera, the detector and the database.
func (a *App) Close() error {
	var errs []error
	if err := a.camera.Close(); err != nil {
		errs = append(errs, err)
	}
	closeDetector(a.detector)
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
