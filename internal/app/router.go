package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	"github.com/aurora-cpe/aurora-cpe/internal/exports"
	"github.com/aurora-cpe/aurora-cpe/internal/observability"
	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/slips"
	"github.com/aurora-cpe/aurora-cpe/internal/slips/render"
	"github.com/aurora-cpe/aurora-cpe/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	SlipsHandler     *slips.Handler
	RenderHandler    *render.Handler
	ExportsHandler   *exports.Handler
	ExportLogHandler *exportlog.Handler
	ProviderHandler  *provider.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Aurora defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/slips", func(r chi.Router) {
			params.SlipsHandler.MountRoutes(r)
			if params.RenderHandler != nil {
				params.RenderHandler.MountRoutes(r)
			}
		})
		r.Route("/exports", params.ExportsHandler.MountRoutes)
		r.Route("/export-logs", params.ExportLogHandler.MountRoutes)
		r.Route("/provider", params.ProviderHandler.MountRoutes)
	})

	if params.RenderHandler != nil {
		r.Route("/downloads", params.RenderHandler.MountDownloadRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
