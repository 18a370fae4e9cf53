package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// Handler exposes direct journal operations over HTTP. Document-driven
// postings run through the trading orchestrator instead.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	calc     *Calculator
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, calc *Calculator) *Handler {
	return &Handler{logger: logger, service: service, calc: calc, validate: validator.New()}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.post)
	r.Get("/", h.list)
	r.Get("/{journalID}", h.get)
	r.Post("/{journalID}/reverse", h.reverse)
	r.Get("/balances/{accountID}", h.balance)
}

type postLineRequest struct {
	AccountID int64           `json:"accountId" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=255"`
}

type postJournalRequest struct {
	Number string            `json:"number" validate:"required,max=64"`
	Date   time.Time         `json:"date" validate:"required"`
	Memo   string            `json:"memo" validate:"max=255"`
	Lines  []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	tenantID := shared.TenantFromContext(r.Context())
	input := PostingInput{
		TenantID:     tenantID,
		Number:       req.Number,
		Date:         req.Date,
		Memo:         req.Memo,
		SourceModule: "ledger:manual",
		SourceID:     uuid.NewSHA1(tenantID, []byte("manual:"+req.Number)),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		})
	}
	journal, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	journals, err := h.service.List(r.Context(), shared.TenantFromContext(r.Context()), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journals)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "journalID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: journal id", httpx.ErrValidation))
		return
	}
	journal, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

type reverseRequest struct {
	Memo string `json:"memo" validate:"max=255"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "journalID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: journal id", httpx.ErrValidation))
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrValidation) {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.Reverse(r.Context(), shared.TenantFromContext(r.Context()), id, req.Memo)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: account id", httpx.ErrValidation))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID := shared.TenantFromContext(r.Context())
	var amount decimal.Decimal
	if r.URL.Query().Get("rollup") == "true" {
		amount, err = h.calc.HierarchyBalance(r.Context(), tenantID, id, from, to)
	} else {
		amount, err = h.calc.BalanceOf(r.Context(), tenantID, id, from, to)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accountId": id, "balance": amount})
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, fmt.Errorf("%w: from must be RFC3339", httpx.ErrValidation)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, fmt.Errorf("%w: to must be RFC3339", httpx.ErrValidation)
		}
		to = parsed
	}
	return from, to, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrJournalNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateNumber), errors.Is(err, ErrSourceAlreadyLinked):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrAlreadyVoided), errors.Is(err, ErrInvalidStatus):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines), errors.Is(err, ErrInactiveAccount):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		h.logger.Error("ledger handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
