// Package http exposes the note, summarization and expansion pipelines over
// a chi router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clinical-notes-service/internal/app"
	"clinical-notes-service/internal/observability/metrics"
	"clinical-notes-service/internal/service/stt"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{app: application}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(metrics.DefaultMetrics))
	r.Use(cors(application.Cfg.Service.CORSOrigins))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/liveness", h.liveness)
		r.Get("/readiness", h.readiness)

		r.Post("/transcribe-live", h.transcribe(stt.TierFast))
		r.Post("/transcribe-recorded", h.transcribe(stt.TierAccurate))
		r.Post("/summarize-text", h.summarizeText)
		r.Post("/expand", h.expand)
	})

	return r
}
