package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/contact-core/internal/domain"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Import job lifecycle
		r.Route("/imports", func(r chi.Router) {
			r.Get("/", h.HandleListJobs)
			r.Post("/upload", h.HandleUpload)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/preview", h.HandlePreview)
				r.Post("/start", h.HandleStart)
				r.Get("/progress", h.HandleProgress)
				r.Post("/cancel", h.HandleCancel)
				r.Get("/conflicts", h.HandleAuditRows(domain.AuditConflict))
				r.Get("/invalid_rows", h.HandleAuditRows(domain.AuditInvalidRow))
				r.Get("/parse_failures", h.HandleAuditRows(domain.AuditParseFailure))
			})
		})

		// Traffic-light board
		r.Get("/traffic-lights", h.HandleTrafficLights)

		// Classifier diagnostics and keyword administration
		r.Route("/classifier", func(r chi.Router) {
			r.Get("/classify", h.HandleClassify)
			r.Get("/keywords", h.HandleListKeywords)
			r.Post("/keywords", h.HandleAddKeywords)
			r.Delete("/keywords/{keyword}", h.HandleDeleteKeyword)
			r.Get("/priorities", h.HandleListPriorities)
			r.Put("/priorities", h.HandleSetPriority)
			r.Post("/reclassify", h.HandleReclassify)
			r.Get("/metrics", h.HandleClassifierMetrics)
		})

		// Alerts and operations
		r.Get("/alerts", h.HandleListAlerts)
		r.Post("/alerts/{alertID}/resolve", h.HandleResolveAlert)
		r.Get("/scheduler/status", h.HandleSchedulerStatus)
		r.Get("/merge-candidates", h.HandleMergeCandidates)
	})

	// Anything else is a JSON 404, not the default text page.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	return r
}
