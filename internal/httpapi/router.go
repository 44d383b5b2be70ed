package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sdbooth/internal/httpapi/handlers"
	"sdbooth/internal/httpkit"
	"sdbooth/internal/pkg/middleware"
)

type Deps = handlers.Deps

func NewRouter(d Deps) http.Handler {
	h := handlers.New(d)
	log := h.Log()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- COMFY ----
	r.Route("/api/comfy", func(r chi.Router) {
		r.Post("/upload-image", middleware.WrapHandler(log, h.UploadImage))
		r.Post("/process", middleware.WrapHandler(log, h.Process))
		r.Post("/clear-queue", middleware.WrapHandler(log, h.ClearQueue))
		r.Get("/jobs", middleware.WrapHandler(log, h.ListJobs))
	})

	// ---- LIVE CLIENTS ----
	r.Get("/api/public/ws", h.WebSocket)

	// ---- ARCHIVE ----
	r.Get("/archive/*", h.ArchiveContent)

	return r
}
