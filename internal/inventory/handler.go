package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// Handler exposes the item catalog and movement history over HTTP. Costed
// movements are created by the trading orchestrator, never directly here.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/items", h.createItem)
	r.Get("/items", h.listItems)
	r.Get("/items/reorder", h.itemsBelowReorder)
	r.Get("/items/{itemID}", h.getItem)
	r.Delete("/items/{itemID}", h.deactivate)
	r.Get("/items/{itemID}/movements", h.movements)
}

type createItemRequest struct {
	SKU             string          `json:"sku" validate:"required,max=64"`
	Name            string          `json:"name" validate:"required,max=255"`
	Unit            string          `json:"unit" validate:"max=16"`
	CostPrice       decimal.Decimal `json:"costPrice"`
	SellingPrice    decimal.Decimal `json:"sellingPrice"`
	ReorderLevel    decimal.Decimal `json:"reorderLevel"`
	AssetAccountID  *int64          `json:"assetAccountId"`
	IncomeAccountID *int64          `json:"incomeAccountId"`
	COGSAccountID   *int64          `json:"cogsAccountId"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		TenantID:        shared.TenantFromContext(r.Context()),
		SKU:             req.SKU,
		Name:            req.Name,
		Unit:            req.Unit,
		CostPrice:       req.CostPrice,
		SellingPrice:    req.SellingPrice,
		ReorderLevel:    req.ReorderLevel,
		AssetAccountID:  req.AssetAccountID,
		IncomeAccountID: req.IncomeAccountID,
		COGSAccountID:   req.COGSAccountID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	items, err := h.service.ListItems(r.Context(), shared.TenantFromContext(r.Context()), activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) itemsBelowReorder(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ItemsBelowReorder(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: item id", httpx.ErrValidation))
		return
	}
	item, err := h.service.GetItem(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: item id", httpx.ErrValidation))
		return
	}
	soft := r.URL.Query().Get("hard") != "true"
	if err := h.service.Deactivate(r.Context(), shared.TenantFromContext(r.Context()), id, soft); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: item id", httpx.ErrValidation))
		return
	}
	filter := MovementFilter{
		TenantID: shared.TenantFromContext(r.Context()),
		ItemID:   id,
		Limit:    100,
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = parsed
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateSKU):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrItemInUse), errors.Is(err, ErrInsufficientStock):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		h.logger.Error("inventory handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
