package trading

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

	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/platform/httpx"
	"github.com/vitabu-erp/vitabu/internal/shared"
	"github.com/vitabu-erp/vitabu/internal/tenants"
)

// Handler exposes the document operations that drive dual posting.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers trading routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices", h.listInvoices)
	r.Get("/invoices/{invoiceID}", h.getInvoice)
	r.Post("/invoices/{invoiceID}/payments", h.payInvoice)
	r.Post("/bills", h.recordPurchase)
	r.Get("/bills", h.listBills)
	r.Get("/bills/{billID}", h.getBill)
	r.Post("/bills/{billID}/payments", h.payBill)
	r.Post("/credit-memos", h.createCreditMemo)
	r.Get("/credit-memos/{memoID}", h.getCreditMemo)
	r.Post("/adjustments", h.adjustStock)
}

type lineRequest struct {
	ItemID      *int64          `json:"itemId"`
	AccountID   *int64          `json:"accountId"`
	Description string          `json:"description" validate:"max=255"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func toLineInputs(lines []lineRequest) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			ItemID:      line.ItemID,
			AccountID:   line.AccountID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return out
}

type createInvoiceRequest struct {
	Number        string          `json:"number" validate:"required,max=64"`
	CustomerID    int64           `json:"customerId" validate:"required"`
	Date          time.Time       `json:"date" validate:"required"`
	Lines         []lineRequest   `json:"lines" validate:"required,min=1,dive"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	CashSale      bool            `json:"cashSale"`
	CashAccountID *int64          `json:"cashAccountId"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		TenantID:      shared.TenantFromContext(r.Context()),
		Number:        req.Number,
		CustomerID:    req.CustomerID,
		Date:          req.Date,
		Lines:         toLineInputs(req.Lines),
		Tax:           req.Tax,
		Discount:      req.Discount,
		CashSale:      req.CashSale,
		CashAccountID: req.CashAccountID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	invoices, err := h.service.ListInvoices(r.Context(), shared.TenantFromContext(r.Context()), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invoice id", httpx.ErrValidation))
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

type recordPurchaseRequest struct {
	Number           string        `json:"number" validate:"required,max=64"`
	VendorID         int64         `json:"vendorId" validate:"required"`
	Date             time.Time     `json:"date" validate:"required"`
	Lines            []lineRequest `json:"lines" validate:"required,min=1,dive"`
	PaidImmediately  bool          `json:"paidImmediately"`
	PaymentAccountID *int64        `json:"paymentAccountId"`
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var req recordPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	bill, err := h.service.RecordPurchase(r.Context(), RecordPurchaseInput{
		TenantID:         shared.TenantFromContext(r.Context()),
		Number:           req.Number,
		VendorID:         req.VendorID,
		Date:             req.Date,
		Lines:            toLineInputs(req.Lines),
		PaidImmediately:  req.PaidImmediately,
		PaymentAccountID: req.PaymentAccountID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	bills, err := h.service.ListBills(r.Context(), shared.TenantFromContext(r.Context()), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bill id", httpx.ErrValidation))
		return
	}
	bill, err := h.service.GetBill(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

type paymentRequest struct {
	Number    string          `json:"number" validate:"required,max=64"`
	Date      time.Time       `json:"date" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	AccountID int64           `json:"accountId" validate:"required"`
}

func (h *Handler) payInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invoice id", httpx.ErrValidation))
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	invoice, err := h.service.RecordInvoicePayment(r.Context(), RecordPaymentInput{
		TenantID:  shared.TenantFromContext(r.Context()),
		Number:    req.Number,
		InvoiceID: id,
		Date:      req.Date,
		Amount:    req.Amount,
		AccountID: req.AccountID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) payBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: bill id", httpx.ErrValidation))
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	bill, err := h.service.RecordBillPayment(r.Context(), RecordPaymentInput{
		TenantID:  shared.TenantFromContext(r.Context()),
		Number:    req.Number,
		BillID:    id,
		Date:      req.Date,
		Amount:    req.Amount,
		AccountID: req.AccountID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

type creditMemoLineRequest struct {
	ItemID   int64           `json:"itemId" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

type createCreditMemoRequest struct {
	Number          string                  `json:"number" validate:"required,max=64"`
	InvoiceID       int64                   `json:"invoiceId" validate:"required"`
	Date            time.Time               `json:"date" validate:"required"`
	Lines           []creditMemoLineRequest `json:"lines" validate:"required,min=1,dive"`
	RefundAccountID *int64                  `json:"refundAccountId"`
}

func (h *Handler) createCreditMemo(w http.ResponseWriter, r *http.Request) {
	var req createCreditMemoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	input := CreateCreditMemoInput{
		TenantID:        shared.TenantFromContext(r.Context()),
		Number:          req.Number,
		InvoiceID:       req.InvoiceID,
		Date:            req.Date,
		RefundAccountID: req.RefundAccountID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReturnLineInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	memo, err := h.service.CreateCreditMemo(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, memo)
}

func (h *Handler) getCreditMemo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memoID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: memo id", httpx.ErrValidation))
		return
	}
	memo, err := h.service.GetCreditMemo(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, memo)
}

type adjustStockRequest struct {
	Reference     string          `json:"reference" validate:"required,max=64"`
	ItemID        int64           `json:"itemId" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reason        string          `json:"reason" validate:"required"`
	Notes         string          `json:"notes" validate:"max=255"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	AllowNegative bool            `json:"allowNegative"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	movement, err := h.service.AdjustStock(r.Context(), AdjustStockInput{
		TenantID:      shared.TenantFromContext(r.Context()),
		Reference:     req.Reference,
		ItemID:        req.ItemID,
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		Notes:         req.Notes,
		UnitCost:      req.UnitCost,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func pagination(r *http.Request) (int, int) {
	limit, offset := 50, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrBillNotFound),
		errors.Is(err, inventory.ErrItemNotFound), errors.Is(err, tenants.ErrMappingNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrReturnExceedsOriginal), errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrUnknownReason),
		errors.Is(err, ErrNotPaymentEligible), errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInactiveAccount):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		h.logger.Error("trading handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
