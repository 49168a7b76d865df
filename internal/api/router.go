package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/datacove/exporttrack/internal/api/handler"
	mw "github.com/datacove/exporttrack/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	exportHandler *handler.ExportHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Route("/objects/{objectID}/exports", func(r chi.Router) {
			r.Get("/", exportHandler.List)
			r.Post("/", exportHandler.Create)
			r.Post("/refresh", exportHandler.Refresh)
			r.Post("/{recordID}/download", exportHandler.Download)
			r.Post("/{recordID}/reimport", exportHandler.Reimport)
			r.Get("/{recordID}/link", exportHandler.Link)
		})
	})

	return r
}
