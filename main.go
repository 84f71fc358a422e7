package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/camden-git/photowall/canvas"
	"github.com/camden-git/photowall/caption"
	"github.com/camden-git/photowall/capture"
	"github.com/camden-git/photowall/codec"
	"github.com/camden-git/photowall/config"
	"github.com/camden-git/photowall/database"
	"github.com/camden-git/photowall/gesture"
	"github.com/camden-git/photowall/handlers"
	"github.com/camden-git/photowall/media"
	"github.com/camden-git/photowall/models"
	"github.com/camden-git/photowall/realtime"
	"github.com/camden-git/photowall/repository"
	"github.com/camden-git/photowall/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.OriginalsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	defer db.Close()
	captureLog := database.NewCaptureLog(db)

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize GORM database: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	documents := repository.NewDocumentRepository(gormDB)

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeOriginal: cfg.OriginalsSubDir,
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	mediaProcessor := media.NewProcessor(mediaStore, cfg.CaptionMaxEdge)

	viewport := codec.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight}
	store := canvas.NewStore(documents, canvas.Options{
		Key:   cfg.DocumentKey,
		Codec: codec.New(viewport),
		OnDelete: func(p models.Photo) {
			if err := mediaProcessor.RemoveOriginal(p.ImageRef); err != nil {
				log.Printf("Warning: failed to remove original of %s: %v", p.ID, err)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Load(ctx); err != nil {
		log.Fatalf("FATAL: Failed to load wall: %v", err)
	}
	log.Printf("Loaded %d photo(s) from document '%s'", len(store.List()), cfg.DocumentKey)

	if cfg.CaptionAPIKey == "" {
		log.Printf("Warning: no caption API key configured; every photo will be captioned '%s'", models.FallbackCaption)
	}
	captioner, err := caption.NewClient(ctx, cfg.CaptionAPIKey, caption.Options{
		BaseURL:       cfg.CaptionBaseURL,
		Model:         cfg.CaptionModel,
		RatePerMinute: cfg.CaptionRatePerMinute,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize caption client: %v", err)
	}

	log.Printf("Initializing caption worker pool (Workers: %d, Queue Size: %d)...", cfg.NumCaptionWorkers, cfg.CaptionQueueSize)
	captions := workers.NewCaptionProcessor(captioner, store, workers.CaptionOptions{
		QueueSize:  cfg.CaptionQueueSize,
		NumWorkers: cfg.NumCaptionWorkers,
		Timeout:    cfg.CaptionTimeout,
		Recorder:   captureLog,
	})

	controller := gesture.NewController(store)
	hub := realtime.NewHub(realtime.Options{
		Dispatcher: controller,
		Snapshot:   store.List,
		Active:     controller.Active,
	})
	store.Subscribe(hub.StoreEvent)
	controller.OnDragPreview(hub.DragPreview)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	pipeline := capture.NewPipeline(capture.ProbeFunc(media.ProbeOrientation), mediaProcessor, store, captions, capture.Options{
		RevealDelay: cfg.RevealDelay,
		Notifier:    hub,
		Recorder:    captureLog,
		Viewport:    viewport,
	})

	router := handlers.NewRouter(handlers.RouterOptions{
		Photos: &handlers.PhotoHandler{Store: store},
		Captures: &handlers.CaptureHandler{
			Pipeline:       pipeline,
			Originals:      mediaProcessor,
			Log:            captureLog,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
		Assets:          mediaStore,
		OriginalsSubDir: cfg.OriginalsSubDir,
		WebSocket:       hub,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing originals in: %s", cfg.OriginalsPath)
	log.Printf("Reveal delay: %s, caption model: %s", cfg.RevealDelay, cfg.CaptionModel)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("Server starting on http://localhost:%d\n", cfg.Port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// a capture holds its request open for the reveal delay
		WriteTimeout: cfg.RevealDelay + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	captions.Stop()
	cancelHub()
	log.Println("Shutdown complete")
}
