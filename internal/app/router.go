package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/forecast-tournament/forecast/internal/auth"
	"github.com/forecast-tournament/forecast/internal/catalog"
	"github.com/forecast-tournament/forecast/internal/forecasts"
	"github.com/forecast-tournament/forecast/internal/observability"
	"github.com/forecast-tournament/forecast/internal/props"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/suggestions"
	"github.com/forecast-tournament/forecast/internal/users"
	"github.com/forecast-tournament/forecast/jobs"
)

// Pinger reports database reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Resolver           *auth.Resolver
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	CatalogHandler     *catalog.Handler
	PropsHandler       *props.Handler
	ForecastsHandler   *forecasts.Handler
	SuggestionsHandler *suggestions.Handler
	JobHandler         *jobs.Handler
	Pool               Pinger
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with forecast defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Resolver:    params.Resolver,
		CSRFManager: params.CSRFManager,
		Metrics:     params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("readiness ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.CatalogHandler != nil {
		r.Route("/categories", params.CatalogHandler.MountCategories)
		r.Route("/competitions", params.CatalogHandler.MountCompetitions)
	}
	if params.PropsHandler != nil {
		r.Route("/props", params.PropsHandler.MountRoutes)
	}
	if params.ForecastsHandler != nil {
		r.Route("/forecasts", params.ForecastsHandler.MountRoutes)
	}
	if params.SuggestionsHandler != nil {
		r.Route("/suggestions", params.SuggestionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
