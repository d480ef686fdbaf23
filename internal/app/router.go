package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/metrik/metrik/internal/accounts"
	"github.com/metrik/metrik/internal/analytics"
	"github.com/metrik/metrik/internal/bom"
	"github.com/metrik/metrik/internal/contractor"
	"github.com/metrik/metrik/internal/ledger"
	"github.com/metrik/metrik/internal/observability"
	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/voucher"
	"github.com/metrik/metrik/jobs"
)

// APIPrefix is the mount point of every domain route.
const APIPrefix = "/api/v1"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions SessionLoader
	Metrics  *observability.Metrics

	VoucherHandler    *voucher.Handler
	LedgerHandler     *ledger.Handler
	AnalyticsHandler  *analytics.Handler
	ContractorHandler *contractor.Handler
	BOMHandler        *bom.Handler
	AccountsHandler   *accounts.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Metrik defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		if params.VoucherHandler != nil {
			params.VoucherHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.AnalyticsHandler != nil {
			params.AnalyticsHandler.MountRoutes(r)
		}
		if params.ContractorHandler != nil {
			params.ContractorHandler.MountRoutes(r)
		}
		if params.BOMHandler != nil {
			params.BOMHandler.MountRoutes(r)
		}
		if params.AccountsHandler != nil {
			params.AccountsHandler.MountRoutes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})

	return r
}
