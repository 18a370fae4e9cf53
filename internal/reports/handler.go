package reports

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// Handler serves the assembled financial statements.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/profit-loss", h.profitLoss)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/cash-flow", h.cashFlow)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryTime(r, "asOf", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.TrialBalance(r.Context(), shared.TenantFromContext(r.Context()), asOf)
	if err != nil {
		h.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
		if err := WriteTrialBalanceCSV(w, doc); err != nil {
			h.logger.Error("trial balance csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.ProfitLoss(r.Context(), shared.TenantFromContext(r.Context()), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="profit-loss.csv"`)
		if err := WriteProfitLossCSV(w, doc); err != nil {
			h.logger.Error("profit loss csv", slog.Any("error", err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryTime(r, "asOf", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.BalanceSheet(r.Context(), shared.TenantFromContext(r.Context()), asOf)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.CashFlow(r.Context(), shared.TenantFromContext(r.Context()), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("report handler", slog.Any("error", err))
	httpx.RespondError(w, err)
}

func queryTime(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339", httpx.ErrValidation, name)
	}
	return parsed, nil
}

func queryRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryTime(r, "from", time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryTime(r, "to", time.Now())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
