package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// Handler exposes the account directory over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers account directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/tree", h.tree)
	r.Get("/{accountID}", h.get)
	r.Delete("/{accountID}", h.deactivate)
}

type createAccountRequest struct {
	Code              string `json:"code" validate:"required,max=32"`
	Name              string `json:"name" validate:"required,max=255"`
	Type              string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	Subtype           string `json:"subtype" validate:"max=64"`
	ParentID          *int64 `json:"parentId"`
	IsContra          bool   `json:"isContra"`
	IsPaymentEligible bool   `json:"isPaymentEligible"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	account, err := h.service.Create(r.Context(), CreateInput{
		TenantID:          shared.TenantFromContext(r.Context()),
		Code:              req.Code,
		Name:              req.Name,
		Type:              AccountType(req.Type),
		Subtype:           req.Subtype,
		ParentID:          req.ParentID,
		IsContra:          req.IsContra,
		IsPaymentEligible: req.IsPaymentEligible,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	accts, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accts)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.ResolveTree(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree.Roots())
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: account id", httpx.ErrValidation))
		return
	}
	account, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: account id", httpx.ErrValidation))
		return
	}
	soft := r.URL.Query().Get("hard") != "true"
	if err := h.service.Deactivate(r.Context(), shared.TenantFromContext(r.Context()), id, soft); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateCode):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrAccountInUse):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrParentMismatch):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		h.logger.Error("account handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
