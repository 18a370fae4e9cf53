package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vitabu-erp/vitabu/internal/accounts"
	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/observability"
	"github.com/vitabu-erp/vitabu/internal/reports"
	"github.com/vitabu-erp/vitabu/internal/tenants"
	"github.com/vitabu-erp/vitabu/internal/trading"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AccountsHandler  *accounts.Handler
	LedgerHandler    *ledger.Handler
	InventoryHandler *inventory.Handler
	TradingHandler   *trading.Handler
	ReportsHandler   *reports.Handler
	TenantsHandler   *tenants.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router for the engine API.
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
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(TenantMiddleware(params.Logger))
		api.Route("/accounts", params.AccountsHandler.MountRoutes)
		api.Route("/journals", params.LedgerHandler.MountRoutes)
		api.Route("/inventory", params.InventoryHandler.MountRoutes)
		api.Route("/trading", params.TradingHandler.MountRoutes)
		api.Route("/reports", params.ReportsHandler.MountRoutes)
		api.Route("/tenant", params.TenantsHandler.MountRoutes)
	})

	return r
}
