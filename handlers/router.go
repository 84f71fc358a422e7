package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/photowall/media"
	"github.com/camden-git/photowall/metrics"
)

type RouterOptions struct {
	Photos   *PhotoHandler
	Captures *CaptureHandler

	// Assets serves stored originals under /api/<OriginalsSubDir>/*.
	Assets           media.Store
	OriginalsSubDir  string
	WebSocket        http.Handler
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	DisableLogging   bool
}

// NewRouter mounts the API, the websocket endpoint and /metrics.
func NewRouter(opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if !opts.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", metrics.Handler())
	if opts.WebSocket != nil {
		// no timeout middleware on the long-lived socket
		r.Handle("/ws", opts.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/photos", func(r chi.Router) {
			r.Get("/", opts.Photos.ListPhotos)
			r.Route("/{photo_id}", func(r chi.Router) {
				r.Get("/", opts.Photos.GetPhoto)
				r.Patch("/", opts.Photos.UpdatePhoto)
				r.Delete("/", opts.Photos.DeletePhoto)
				r.Post("/focus", opts.Photos.FocusPhoto)
			})
		})

		r.Route("/captures", func(r chi.Router) {
			r.Post("/", opts.Captures.CreateCapture)
			r.Get("/", opts.Captures.ListCaptures)
		})

		if opts.Assets != nil && opts.OriginalsSubDir != "" {
			r.Get(fmt.Sprintf("/%s/*", opts.OriginalsSubDir), AssetServer(opts.Assets, opts.OriginalsSubDir))
			log.Printf("Registered originals server at /api/%s/*", opts.OriginalsSubDir)
		}
	})

	return r
}
