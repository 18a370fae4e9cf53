package tenants

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// Handler exposes tenant configuration over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers tenant setup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/defaults", h.defaults)
	r.Put("/defaults", h.configure)
}

func (h *Handler) defaults(w http.ResponseWriter, r *http.Request) {
	defaults, err := h.service.Resolve(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, defaults)
}

type configureRequest struct {
	Key       string `json:"key" validate:"required,max=64"`
	AccountID int64  `json:"accountId" validate:"required"`
}

func (h *Handler) configure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.service.Configure(r.Context(), shared.TenantFromContext(r.Context()), req.Key, req.AccountID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrMappingNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	default:
		h.logger.Error("tenants handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
