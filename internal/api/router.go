package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"legallens.org/assistant/internal/api/recovery"
	"legallens.org/assistant/internal/metrics"
)

// NewRouter mounts the chat API under /api. allowedOrigins is the CORS
// allow-list for the separately hosted web client.
func NewRouter(apiHandler *APIHandler, allowedOrigins []string, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(recovery.Middleware)     // Recover from panics with a JSON 500
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Handle("/metrics", metrics.Handler())

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", apiHandler.StatusHandler)
		r.Get("/health", apiHandler.HealthHandler)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/send", apiHandler.SendMessageHandler)
			r.Post("/stream", apiHandler.StreamMessageHandler)
			r.Get("/history", apiHandler.GetHistoryHandler)
			r.Post("/clear-history", apiHandler.ClearHistoryHandler)

			// FIR routes
			r.Post("/generate-fir", apiHandler.GenerateFIRHandler)
			r.Post("/generate-fir-pdf", apiHandler.GenerateFIRPDFHandler)
			r.Get("/download-fir/{filename}", apiHandler.DownloadFIRHandler)
			r.Post("/email-fir", apiHandler.EmailFIRHandler)

			// Cache routes
			r.Get("/cache-stats", apiHandler.CacheStatsHandler)
			r.Post("/clear-cache", apiHandler.ClearCacheHandler)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}
