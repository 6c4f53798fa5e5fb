package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stragan/stragan/internal/catalog"
	"github.com/stragan/stragan/internal/day"
	"github.com/stragan/stragan/internal/expiry"
	"github.com/stragan/stragan/internal/observability"
	"github.com/stragan/stragan/internal/recon"
	"github.com/stragan/stragan/internal/sales"
	"github.com/stragan/stragan/internal/shift"
	"github.com/stragan/stragan/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Pool           *pgxpool.Pool
	CatalogHandler *catalog.Handler
	StockHandler   *stock.Handler
	ExpiryHandler  *expiry.Handler
	DayHandler     *day.Handler
	SalesHandler   *sales.Handler
	ReconHandler   *recon.Handler
	ShiftHandler   *shift.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Stragan defaults.
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
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("healthcheck ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/catalog", func(r chi.Router) {
		params.CatalogHandler.MountRoutes(r)
	})
	r.Route("/stock", func(r chi.Router) {
		params.StockHandler.MountRoutes(r)
		params.ExpiryHandler.MountRoutes(r)
	})
	r.Route("/days", func(r chi.Router) {
		params.DayHandler.MountRoutes(r)
		params.ReconHandler.MountRoutes(r)
	})
	r.Route("/sales", func(r chi.Router) {
		params.SalesHandler.MountRoutes(r)
	})
	r.Route("/shifts", func(r chi.Router) {
		params.ShiftHandler.MountRoutes(r)
	})

	return r
}
