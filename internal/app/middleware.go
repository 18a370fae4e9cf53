package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/unrolled/secure"

	"github.com/vitabu-erp/vitabu/internal/observability"
	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// TenantHeader carries the tenant scope of every API request. Authentication
// and tenant authorisation live in front of this service.
const TenantHeader = "X-Tenant-ID"

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the standard middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(60 * time.Second),
		httprate.LimitByIP(120, time.Minute),
		secureMiddleware.Handler,
	}
	if cfg.Metrics != nil {
		stack = append(stack, cfg.Metrics.Middleware)
	}
	return stack
}

// TenantMiddleware resolves the tenant header into the request context.
// Requests without a valid tenant id never reach a handler.
func TenantMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(TenantHeader)
			if raw == "" {
				httpx.Problem(w, http.StatusBadRequest, "Missing tenant", "the "+TenantHeader+" header is required")
				return
			}
			tenantID, err := uuid.Parse(raw)
			if err != nil {
				logger.Warn("malformed tenant header", slog.String("value", raw))
				httpx.Problem(w, http.StatusBadRequest, "Invalid tenant", "the "+TenantHeader+" header must be a UUID")
				return
			}
			ctx := shared.ContextWithTenant(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
