package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/shared"
	"github.com/vitabu-erp/vitabu/internal/tenants"
)

// TxRepository is the transactional surface the orchestrator works on. It
// composes the ledger and inventory transaction ports with the trading
// document store, all bound to the same database transaction, so a sale's
// revenue journal, cost journal, stock movement and invoice row commit or
// roll back together.
type TxRepository interface {
	ledger.TxRepository
	inventory.TxRepository

	// ReserveKey claims an idempotency key inside the transaction. A replay
	// of the same key returns shared.ErrIdempotencyConflict.
	ReserveKey(ctx context.Context, tenantID uuid.UUID, key string) error

	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, tenantID uuid.UUID, invoiceID int64) (Invoice, error)
	SetInvoiceJournals(ctx context.Context, tenantID uuid.UUID, invoiceID int64, revenueJournalID, cogsJournalID *int64) error
	UpdateInvoiceSettlement(ctx context.Context, tenantID uuid.UUID, invoiceID int64, paid, refunded decimal.Decimal, status DocStatus) error
	// ReturnedQty sums quantities already credited back against one invoice
	// line item across earlier memos.
	ReturnedQty(ctx context.Context, tenantID uuid.UUID, invoiceID, itemID int64) (decimal.Decimal, error)
	InsertCreditMemo(ctx context.Context, memo CreditMemo) (CreditMemo, error)

	InsertBill(ctx context.Context, bill PurchaseBill) (PurchaseBill, error)
	GetBillForUpdate(ctx context.Context, tenantID uuid.UUID, billID int64) (PurchaseBill, error)
	UpdateBillSettlement(ctx context.Context, tenantID uuid.UUID, billID int64, paid decimal.Decimal, status DocStatus) error
}

// RepositoryPort wraps trading persistence plus the serializable transaction
// runner the orchestrator needs.
type RepositoryPort interface {
	WithDocTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID int64) (Invoice, error)
	FindInvoiceByNumber(ctx context.Context, tenantID uuid.UUID, number string) (Invoice, error)
	ListInvoices(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Invoice, error)
	GetBill(ctx context.Context, tenantID uuid.UUID, billID int64) (PurchaseBill, error)
	FindBillByNumber(ctx context.Context, tenantID uuid.UUID, number string) (PurchaseBill, error)
	ListBills(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]PurchaseBill, error)
	GetCreditMemo(ctx context.Context, tenantID uuid.UUID, memoID int64) (CreditMemo, error)
	FindCreditMemoByNumber(ctx context.Context, tenantID uuid.UUID, number string) (CreditMemo, error)
}

// AuditPort records trading events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates business documents into their ledger and inventory
// effects.
type Service struct {
	repo    RepositoryPort
	tenants *tenants.Service
	audit   AuditPort
	now     func() time.Time
}

func NewService(repo RepositoryPort, ten *tenants.Service, audit AuditPort) *Service {
	return &Service{repo: repo, tenants: ten, audit: audit, now: time.Now}
}

// CreateInvoice records a sale. A credit sale debits receivable; a cash sale
// debits the settlement account and the invoice is born paid. Tracked item
// lines additionally relieve stock at weighted average and post the matching
// cost journal. Replaying the same invoice number returns the document the
// first call produced.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if err := validateLines(input.Lines); err != nil {
		return Invoice{}, err
	}
	if input.Tax.IsNegative() || input.Discount.IsNegative() {
		return Invoice{}, fmt.Errorf("%w: negative tax or discount", ErrInvalidAmount)
	}
	defaults, err := s.tenants.Resolve(ctx, input.TenantID)
	if err != nil {
		return Invoice{}, err
	}

	var created Invoice
	err = s.repo.WithDocTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReserveKey(ctx, input.TenantID, "invoice:"+input.Number); err != nil {
			return err
		}
		now := s.now()

		subtotal := decimal.Zero
		for _, line := range input.Lines {
			subtotal = subtotal.Add(shared.RoundMoney(line.Quantity.Mul(line.UnitPrice)))
		}
		total := subtotal.Sub(input.Discount).Add(input.Tax)
		if !total.IsPositive() {
			return fmt.Errorf("%w: invoice total %s", ErrInvalidAmount, total)
		}

		inv := Invoice{
			TenantID:   input.TenantID,
			Number:     input.Number,
			CustomerID: input.CustomerID,
			Date:       input.Date,
			Status:     StatusUnpaid,
			CashSale:   input.CashSale,
			Subtotal:   subtotal,
			Tax:        shared.RoundMoney(input.Tax),
			Discount:   shared.RoundMoney(input.Discount),
			Total:      shared.RoundMoney(total),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if input.CashSale {
			inv.Status = StatusPaid
			inv.PaidAmount = inv.Total
		}
		for _, line := range input.Lines {
			inv.Lines = append(inv.Lines, InvoiceLine{
				ItemID:      line.ItemID,
				AccountID:   line.AccountID,
				Description: line.Description,
				Quantity:    line.Quantity,
				UnitPrice:   shared.RoundMoney(line.UnitPrice),
				LineTotal:   shared.RoundMoney(line.Quantity.Mul(line.UnitPrice)),
			})
		}
		inv, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}

		debitAccount := defaults.Receivable
		if input.CashSale {
			debitAccount = defaults.Cash
			if input.CashAccountID != nil {
				debitAccount = *input.CashAccountID
			}
			if err := requirePaymentEligible(ctx, tx, input.TenantID, debitAccount); err != nil {
				return err
			}
		}

		revLines := []ledger.PostingLineInput{{AccountID: debitAccount, Debit: inv.Total}}
		for _, line := range inv.Lines {
			revenueAccount := defaults.Revenue
			if line.AccountID != nil {
				revenueAccount = *line.AccountID
			} else if line.ItemID != nil {
				item, err := tx.GetItemForUpdate(ctx, input.TenantID, *line.ItemID)
				if err != nil {
					return err
				}
				if item.IncomeAccountID != nil {
					revenueAccount = *item.IncomeAccountID
				}
			}
			revLines = append(revLines, ledger.PostingLineInput{
				AccountID: revenueAccount,
				Credit:    line.LineTotal,
				Memo:      line.Description,
			})
		}
		if input.Discount.IsPositive() {
			revLines = append(revLines, ledger.PostingLineInput{AccountID: defaults.Revenue, Debit: inv.Discount, Memo: "Discount"})
		}
		if input.Tax.IsPositive() {
			revLines = append(revLines, ledger.PostingLineInput{AccountID: defaults.TaxPayable, Credit: inv.Tax, Memo: "Sales tax"})
		}
		revenue, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
			TenantID:     input.TenantID,
			Number:       inv.Number + "-S",
			Date:         input.Date,
			Memo:         "Sale " + inv.Number,
			SourceModule: "trading:invoice",
			SourceID:     sourceID(input.TenantID, "invoice", inv.Number),
			Lines:        revLines,
		})
		if err != nil {
			return err
		}
		inv.RevenueJournalID = &revenue.ID

		cogsJournalID, err := s.relieveStock(ctx, tx, defaults, inv, now)
		if err != nil {
			return err
		}
		inv.COGSJournalID = cogsJournalID

		if err := tx.SetInvoiceJournals(ctx, input.TenantID, inv.ID, inv.RevenueJournalID, inv.COGSJournalID); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		if replay(err) {
			return s.repo.FindInvoiceByNumber(ctx, input.TenantID, input.Number)
		}
		return Invoice{}, err
	}
	s.record(ctx, input.TenantID, "invoice.created", "invoice", created.Number, map[string]any{"id": created.ID, "total": created.Total.String()})
	return created, nil
}

// relieveStock issues OUT movements for tracked item lines and posts the
// matching cost journal. Invoices with only service lines skip the cost side
// entirely.
func (s *Service) relieveStock(ctx context.Context, tx TxRepository, defaults tenants.DefaultAccounts, inv Invoice, now time.Time) (*int64, error) {
	type costed struct {
		movementID int64
		line       ledger.PostingLineInput
		contra     ledger.PostingLineInput
	}
	var (
		moved []costed
		total = decimal.Zero
	)
	for _, line := range inv.Lines {
		if line.ItemID == nil {
			continue
		}
		movement, item, err := inventory.ApplyTx(ctx, tx, inventory.MovementRequest{
			TenantID:   inv.TenantID,
			ItemID:     *line.ItemID,
			Direction:  inventory.DirectionOut,
			Reason:     inventory.ReasonSale,
			Quantity:   line.Quantity,
			Reference:  inv.Number,
			OccurredAt: now,
		})
		if err != nil {
			return nil, err
		}
		cogsAccount := defaults.COGS
		if item.COGSAccountID != nil {
			cogsAccount = *item.COGSAccountID
		}
		assetAccount := defaults.InventoryAsset
		if item.AssetAccountID != nil {
			assetAccount = *item.AssetAccountID
		}
		moved = append(moved, costed{
			movementID: movement.ID,
			line:       ledger.PostingLineInput{AccountID: cogsAccount, Debit: movement.TotalCost, Memo: item.SKU},
			contra:     ledger.PostingLineInput{AccountID: assetAccount, Credit: movement.TotalCost, Memo: item.SKU},
		})
		total = total.Add(movement.TotalCost)
	}
	if len(moved) == 0 || total.IsZero() {
		return nil, nil
	}
	lines := make([]ledger.PostingLineInput, 0, len(moved)*2)
	for _, m := range moved {
		lines = append(lines, m.line, m.contra)
	}
	cogs, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
		TenantID:     inv.TenantID,
		Number:       inv.Number + "-C",
		Date:         inv.Date,
		Memo:         "Cost of sale " + inv.Number,
		SourceModule: "trading:invoice:cogs",
		SourceID:     sourceID(inv.TenantID, "invoice:cogs", inv.Number),
		Lines:        lines,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range moved {
		if err := tx.LinkMovementJournal(ctx, inv.TenantID, m.movementID, cogs.ID); err != nil {
			return nil, err
		}
	}
	return &cogs.ID, nil
}

// RecordPurchase receives goods and posts the bill in one transaction.
// Tracked item lines raise stock and the weighted average at the billed unit
// cost; non-item lines debit the expense account directly.
func (s *Service) RecordPurchase(ctx context.Context, input RecordPurchaseInput) (PurchaseBill, error) {
	if err := validateLines(input.Lines); err != nil {
		return PurchaseBill{}, err
	}
	defaults, err := s.tenants.Resolve(ctx, input.TenantID)
	if err != nil {
		return PurchaseBill{}, err
	}

	var created PurchaseBill
	err = s.repo.WithDocTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReserveKey(ctx, input.TenantID, "bill:"+input.Number); err != nil {
			return err
		}
		now := s.now()

		total := decimal.Zero
		bill := PurchaseBill{
			TenantID:  input.TenantID,
			Number:    input.Number,
			VendorID:  input.VendorID,
			Date:      input.Date,
			Status:    StatusUnpaid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, line := range input.Lines {
			lineTotal := shared.RoundMoney(line.Quantity.Mul(line.UnitPrice))
			total = total.Add(lineTotal)
			bill.Lines = append(bill.Lines, BillLine{
				ItemID:      line.ItemID,
				AccountID:   line.AccountID,
				Description: line.Description,
				Quantity:    line.Quantity,
				UnitCost:    shared.RoundCost(line.UnitPrice),
				LineTotal:   lineTotal,
			})
		}
		if !total.IsPositive() {
			return fmt.Errorf("%w: bill total %s", ErrInvalidAmount, total)
		}
		bill.Total = total
		if input.PaidImmediately {
			bill.Status = StatusPaid
			bill.PaidAmount = total
		}
		bill, err := tx.InsertBill(ctx, bill)
		if err != nil {
			return err
		}

		var (
			movementIDs []int64
			lines       []ledger.PostingLineInput
		)
		for _, line := range bill.Lines {
			switch {
			case line.ItemID != nil:
				movement, item, err := inventory.ApplyTx(ctx, tx, inventory.MovementRequest{
					TenantID:   input.TenantID,
					ItemID:     *line.ItemID,
					Direction:  inventory.DirectionIn,
					Reason:     inventory.ReasonPurchase,
					Quantity:   line.Quantity,
					UnitCost:   line.UnitCost,
					Reference:  bill.Number,
					OccurredAt: now,
				})
				if err != nil {
					return err
				}
				assetAccount := defaults.InventoryAsset
				if item.AssetAccountID != nil {
					assetAccount = *item.AssetAccountID
				}
				movementIDs = append(movementIDs, movement.ID)
				lines = append(lines, ledger.PostingLineInput{AccountID: assetAccount, Debit: movement.TotalCost, Memo: item.SKU})
			case line.AccountID != nil:
				lines = append(lines, ledger.PostingLineInput{AccountID: *line.AccountID, Debit: line.LineTotal, Memo: line.Description})
			}
		}

		creditAccount := defaults.Payable
		if input.PaidImmediately {
			creditAccount = defaults.Cash
			if input.PaymentAccountID != nil {
				creditAccount = *input.PaymentAccountID
			}
			if err := requirePaymentEligible(ctx, tx, input.TenantID, creditAccount); err != nil {
				return err
			}
		}
		credit := decimal.Zero
		for _, l := range lines {
			credit = credit.Add(l.Debit)
		}
		lines = append(lines, ledger.PostingLineInput{AccountID: creditAccount, Credit: credit})

		journal, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
			TenantID:     input.TenantID,
			Number:       bill.Number + "-P",
			Date:         input.Date,
			Memo:         "Purchase " + bill.Number,
			SourceModule: "trading:bill",
			SourceID:     sourceID(input.TenantID, "bill", bill.Number),
			Lines:        lines,
		})
		if err != nil {
			return err
		}
		for _, id := range movementIDs {
			if err := tx.LinkMovementJournal(ctx, input.TenantID, id, journal.ID); err != nil {
				return err
			}
		}
		bill.JournalID = &journal.ID
		created = bill
		return nil
	})
	if err != nil {
		if replay(err) {
			return s.repo.FindBillByNumber(ctx, input.TenantID, input.Number)
		}
		return PurchaseBill{}, err
	}
	s.record(ctx, input.TenantID, "bill.recorded", "bill", created.Number, map[string]any{"id": created.ID, "total": created.Total.String()})
	return created, nil
}

// CreateCreditMemo reverses part of a sale: refunded revenue comes out of
// the income account, and returned goods come back into stock at the cost
// recorded when they left, never at today's weighted average. Returns beyond
// the quantity originally sold net of prior returns are rejected.
func (s *Service) CreateCreditMemo(ctx context.Context, input CreateCreditMemoInput) (CreditMemo, error) {
	if len(input.Lines) == 0 {
		return CreditMemo{}, fmt.Errorf("%w: no return lines", ErrInvalidLine)
	}
	defaults, err := s.tenants.Resolve(ctx, input.TenantID)
	if err != nil {
		return CreditMemo{}, err
	}

	var created CreditMemo
	err = s.repo.WithDocTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReserveKey(ctx, input.TenantID, "creditmemo:"+input.Number); err != nil {
			return err
		}
		now := s.now()

		inv, err := tx.GetInvoiceForUpdate(ctx, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}

		soldQty := make(map[int64]decimal.Decimal)
		soldPrice := make(map[int64]decimal.Decimal)
		for _, line := range inv.Lines {
			if line.ItemID == nil {
				continue
			}
			soldQty[*line.ItemID] = soldQty[*line.ItemID].Add(line.Quantity)
			soldPrice[*line.ItemID] = line.UnitPrice
		}

		memo := CreditMemo{
			TenantID:  input.TenantID,
			Number:    input.Number,
			InvoiceID: inv.ID,
			Date:      input.Date,
			CreatedAt: now,
		}
		var (
			movementIDs  []int64
			refund       = decimal.Zero
			returnCost   = decimal.Zero
			requested    = make(map[int64]decimal.Decimal)
			revenueLines []ledger.PostingLineInput
			cogsLines    []ledger.PostingLineInput
		)
		for _, line := range input.Lines {
			if !line.Quantity.IsPositive() {
				return fmt.Errorf("%w: return quantity %s", ErrInvalidLine, line.Quantity)
			}
			sold, ok := soldQty[line.ItemID]
			if !ok {
				return fmt.Errorf("%w: item %d not on invoice %s", ErrReturnExceedsOriginal, line.ItemID, inv.Number)
			}
			already, err := tx.ReturnedQty(ctx, input.TenantID, inv.ID, line.ItemID)
			if err != nil {
				return err
			}
			// The cap spans earlier memos and this memo's own lines, so a
			// memo repeating an item cannot exceed the sold quantity either.
			requested[line.ItemID] = requested[line.ItemID].Add(line.Quantity)
			if already.Add(requested[line.ItemID]).GreaterThan(sold) {
				return fmt.Errorf("%w: item %d sold %s returned %s requested %s",
					ErrReturnExceedsOriginal, line.ItemID, sold, already, requested[line.ItemID])
			}

			unitCost, err := tx.MovementUnitCost(ctx, input.TenantID, line.ItemID, inventory.ReasonSale, inv.Number)
			if err != nil {
				return err
			}
			movement, item, err := inventory.ApplyTx(ctx, tx, inventory.MovementRequest{
				TenantID:   input.TenantID,
				ItemID:     line.ItemID,
				Direction:  inventory.DirectionIn,
				Reason:     inventory.ReasonCustomerReturn,
				Quantity:   line.Quantity,
				UnitCost:   unitCost,
				Reference:  memo.Number,
				OccurredAt: now,
			})
			if err != nil {
				return err
			}
			movementIDs = append(movementIDs, movement.ID)

			lineRefund := shared.RoundMoney(line.Quantity.Mul(soldPrice[line.ItemID]))
			refund = refund.Add(lineRefund)
			returnCost = returnCost.Add(movement.TotalCost)
			memo.Lines = append(memo.Lines, CreditMemoLine{
				ItemID:       line.ItemID,
				Quantity:     line.Quantity,
				UnitPrice:    soldPrice[line.ItemID],
				RefundAmount: lineRefund,
			})

			incomeAccount := defaults.Revenue
			if item.IncomeAccountID != nil {
				incomeAccount = *item.IncomeAccountID
			}
			assetAccount := defaults.InventoryAsset
			if item.AssetAccountID != nil {
				assetAccount = *item.AssetAccountID
			}
			cogsAccount := defaults.COGS
			if item.COGSAccountID != nil {
				cogsAccount = *item.COGSAccountID
			}
			revenueLines = append(revenueLines, ledger.PostingLineInput{AccountID: incomeAccount, Debit: lineRefund, Memo: item.SKU})
			cogsLines = append(cogsLines,
				ledger.PostingLineInput{AccountID: assetAccount, Debit: movement.TotalCost, Memo: item.SKU},
				ledger.PostingLineInput{AccountID: cogsAccount, Credit: movement.TotalCost, Memo: item.SKU},
			)
		}
		memo.RefundAmount = refund
		memo.ReturnCost = returnCost

		creditAccount := defaults.Receivable
		if input.RefundAccountID != nil {
			creditAccount = *input.RefundAccountID
			if err := requirePaymentEligible(ctx, tx, input.TenantID, creditAccount); err != nil {
				return err
			}
		}
		revenueLines = append(revenueLines, ledger.PostingLineInput{AccountID: creditAccount, Credit: refund})

		revJournal, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
			TenantID:     input.TenantID,
			Number:       memo.Number + "-R1",
			Date:         input.Date,
			Memo:         "Return against " + inv.Number,
			SourceModule: "trading:creditmemo",
			SourceID:     sourceID(input.TenantID, "creditmemo", memo.Number),
			Lines:        revenueLines,
		})
		if err != nil {
			return err
		}
		memo.RevenueJournalID = &revJournal.ID

		if returnCost.IsPositive() {
			cogsJournal, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
				TenantID:     input.TenantID,
				Number:       memo.Number + "-R2",
				Date:         input.Date,
				Memo:         "Return cost against " + inv.Number,
				SourceModule: "trading:creditmemo:cogs",
				SourceID:     sourceID(input.TenantID, "creditmemo:cogs", memo.Number),
				Lines:        cogsLines,
			})
			if err != nil {
				return err
			}
			memo.COGSJournalID = &cogsJournal.ID
			for _, id := range movementIDs {
				if err := tx.LinkMovementJournal(ctx, input.TenantID, id, cogsJournal.ID); err != nil {
					return err
				}
			}
		}

		memo, err = tx.InsertCreditMemo(ctx, memo)
		if err != nil {
			return err
		}

		refunded := inv.RefundedAmount.Add(refund)
		status := settlementStatus(inv.Total.Sub(refunded), inv.PaidAmount)
		if err := tx.UpdateInvoiceSettlement(ctx, input.TenantID, inv.ID, inv.PaidAmount, refunded, status); err != nil {
			return err
		}
		created = memo
		return nil
	})
	if err != nil {
		if replay(err) {
			return s.repo.FindCreditMemoByNumber(ctx, input.TenantID, input.Number)
		}
		return CreditMemo{}, err
	}
	s.record(ctx, input.TenantID, "creditmemo.created", "credit_memo", created.Number, map[string]any{"id": created.ID, "refund": created.RefundAmount.String()})
	return created, nil
}

// AdjustStock records a non-trade movement and its single journal. The
// reason determines the ledger legs: losses hit the shrinkage expense,
// found stock credits the gain account, opening balances credit equity.
func (s *Service) AdjustStock(ctx context.Context, input AdjustStockInput) (inventory.StockMovement, error) {
	if input.Quantity.IsZero() {
		return inventory.StockMovement{}, inventory.ErrInvalidQuantity
	}
	defaults, err := s.tenants.Resolve(ctx, input.TenantID)
	if err != nil {
		return inventory.StockMovement{}, err
	}
	reason := inventory.Reason(input.Reason)
	direction := inventory.DirectionIn
	qty := input.Quantity
	if qty.IsNegative() {
		direction = inventory.DirectionOut
		qty = qty.Neg()
	}
	if err := validateAdjustment(reason, direction); err != nil {
		return inventory.StockMovement{}, err
	}

	var created inventory.StockMovement
	err = s.repo.WithDocTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReserveKey(ctx, input.TenantID, "adjustment:"+input.Reference); err != nil {
			return err
		}
		now := s.now()

		unitCost := input.UnitCost
		if direction == inventory.DirectionIn && unitCost.IsZero() {
			item, err := tx.GetItemForUpdate(ctx, input.TenantID, input.ItemID)
			if err != nil {
				return err
			}
			unitCost = item.WeightedAverage
			if unitCost.IsZero() {
				unitCost = item.CostPrice
			}
		}

		movement, item, err := inventory.ApplyTx(ctx, tx, inventory.MovementRequest{
			TenantID:      input.TenantID,
			ItemID:        input.ItemID,
			Direction:     direction,
			Reason:        reason,
			Quantity:      qty,
			UnitCost:      unitCost,
			AllowNegative: input.AllowNegative,
			Reference:     input.Reference,
			OccurredAt:    now,
		})
		if err != nil {
			return err
		}

		assetAccount := defaults.InventoryAsset
		if item.AssetAccountID != nil {
			assetAccount = *item.AssetAccountID
		}
		contra, err := adjustmentContra(reason, direction, defaults)
		if err != nil {
			return err
		}

		var lines []ledger.PostingLineInput
		if direction == inventory.DirectionIn {
			lines = []ledger.PostingLineInput{
				{AccountID: assetAccount, Debit: movement.TotalCost, Memo: item.SKU},
				{AccountID: contra, Credit: movement.TotalCost, Memo: input.Notes},
			}
		} else {
			lines = []ledger.PostingLineInput{
				{AccountID: contra, Debit: movement.TotalCost, Memo: input.Notes},
				{AccountID: assetAccount, Credit: movement.TotalCost, Memo: item.SKU},
			}
		}
		if movement.TotalCost.IsZero() {
			// A zero-cost movement still records the quantity change but has
			// no ledger effect.
			created = movement
			return nil
		}
		journal, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
			TenantID:     input.TenantID,
			Number:       input.Reference + "-A",
			Date:         now,
			Memo:         fmt.Sprintf("Stock adjustment %s (%s)", input.Reference, reason),
			SourceModule: "trading:adjustment",
			SourceID:     sourceID(input.TenantID, "adjustment", input.Reference),
			Lines:        lines,
		})
		if err != nil {
			return err
		}
		if err := tx.LinkMovementJournal(ctx, input.TenantID, movement.ID, journal.ID); err != nil {
			return err
		}
		movement.JournalID = &journal.ID
		created = movement
		return nil
	})
	if err != nil {
		return inventory.StockMovement{}, err
	}
	s.record(ctx, input.TenantID, "stock.adjusted", "stock_movement", input.Reference, map[string]any{"item": input.ItemID, "qty": input.Quantity.String(), "reason": input.Reason})
	return created, nil
}

// RecordInvoicePayment applies a customer settlement: debit the payment
// account, credit receivable, and roll the invoice status forward.
func (s *Service) RecordInvoicePayment(ctx context.Context, input RecordPaymentInput) (Invoice, error) {
	if !input.Amount.IsPositive() {
		return Invoice{}, fmt.Errorf("%w: payment %s", ErrInvalidAmount, input.Amount)
	}
	defaults, err := s.tenants.Resolve(ctx, input.TenantID)
	if err != nil {
		return Invoice{}, err
	}

	var updated Invoice
	err = s.repo.WithDocTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReserveKey(ctx, input.TenantID, "payment:"+input.Number); err != nil {
			return err
		}
		now := s.now()

		inv, err := tx.GetInvoiceForUpdate(ctx, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}
		outstanding := inv.Total.Sub(inv.RefundedAmount).Sub(inv.PaidAmount)
		if input.Amount.GreaterThan(outstanding) {
			return fmt.Errorf("%w: payment %s exceeds outstanding %s", ErrInvalidAmount, input.Amount, outstanding)
		}
		if err := requirePaymentEligible(ctx, tx, input.TenantID, input.AccountID); err != nil {
			return err
		}

		if _, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
			TenantID:     input.TenantID,
			Number:       input.Number + "-PMT",
			Date:         input.Date,
			Memo:         "Payment against " + inv.Number,
			SourceModule: "trading:payment",
			SourceID:     sourceID(input.TenantID, "payment", input.Number),
			Lines: []ledger.PostingLineInput{
				{AccountID: input.AccountID, Debit: input.Amount},
				{AccountID: defaults.Receivable, Credit: input.Amount},
			},
		}); err != nil {
			return err
		}

		paid := inv.PaidAmount.Add(input.Amount)
		status := settlementStatus(inv.Total.Sub(inv.RefundedAmount), paid)
		if err := tx.UpdateInvoiceSettlement(ctx, input.TenantID, inv.ID, paid, inv.RefundedAmount, status); err != nil {
			return err
		}
		inv.PaidAmount = paid
		inv.Status = status
		updated = inv
		return nil
	})
	if err != nil {
		if replay(err) {
			return s.repo.GetInvoice(ctx, input.TenantID, input.InvoiceID)
		}
		return Invoice{}, err
	}
	s.record(ctx, input.TenantID, "invoice.paid", "invoice", updated.Number, map[string]any{"amount": input.Amount.String(), "status": string(updated.Status)})
	return updated, nil
}

// RecordBillPayment applies a vendor settlement: debit payable, credit the
// payment account.
func (s *Service) RecordBillPayment(ctx context.Context, input RecordPaymentInput) (PurchaseBill, error) {
	if !input.Amount.IsPositive() {
		return PurchaseBill{}, fmt.Errorf("%w: payment %s", ErrInvalidAmount, input.Amount)
	}
	defaults, err := s.tenants.Resolve(ctx, input.TenantID)
	if err != nil {
		return PurchaseBill{}, err
	}

	var updated PurchaseBill
	err = s.repo.WithDocTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReserveKey(ctx, input.TenantID, "billpayment:"+input.Number); err != nil {
			return err
		}
		now := s.now()

		bill, err := tx.GetBillForUpdate(ctx, input.TenantID, input.BillID)
		if err != nil {
			return err
		}
		outstanding := bill.Total.Sub(bill.PaidAmount)
		if input.Amount.GreaterThan(outstanding) {
			return fmt.Errorf("%w: payment %s exceeds outstanding %s", ErrInvalidAmount, input.Amount, outstanding)
		}
		if err := requirePaymentEligible(ctx, tx, input.TenantID, input.AccountID); err != nil {
			return err
		}

		if _, err := ledger.PostTx(ctx, tx, now, ledger.PostingInput{
			TenantID:     input.TenantID,
			Number:       input.Number + "-PMT",
			Date:         input.Date,
			Memo:         "Payment for " + bill.Number,
			SourceModule: "trading:billpayment",
			SourceID:     sourceID(input.TenantID, "billpayment", input.Number),
			Lines: []ledger.PostingLineInput{
				{AccountID: defaults.Payable, Debit: input.Amount},
				{AccountID: input.AccountID, Credit: input.Amount},
			},
		}); err != nil {
			return err
		}

		paid := bill.PaidAmount.Add(input.Amount)
		status := settlementStatus(bill.Total, paid)
		if err := tx.UpdateBillSettlement(ctx, input.TenantID, bill.ID, paid, status); err != nil {
			return err
		}
		bill.PaidAmount = paid
		bill.Status = status
		updated = bill
		return nil
	})
	if err != nil {
		if replay(err) {
			return s.repo.GetBill(ctx, input.TenantID, input.BillID)
		}
		return PurchaseBill{}, err
	}
	s.record(ctx, input.TenantID, "bill.paid", "bill", updated.Number, map[string]any{"amount": input.Amount.String(), "status": string(updated.Status)})
	return updated, nil
}

func (s *Service) GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, tenantID, invoiceID)
}

func (s *Service) ListInvoices(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, tenantID, limit, offset)
}

func (s *Service) GetBill(ctx context.Context, tenantID uuid.UUID, billID int64) (PurchaseBill, error) {
	return s.repo.GetBill(ctx, tenantID, billID)
}

func (s *Service) ListBills(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]PurchaseBill, error) {
	return s.repo.ListBills(ctx, tenantID, limit, offset)
}

func (s *Service) GetCreditMemo(ctx context.Context, tenantID uuid.UUID, memoID int64) (CreditMemo, error) {
	return s.repo.GetCreditMemo(ctx, tenantID, memoID)
}

func (s *Service) record(ctx context.Context, tenantID uuid.UUID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}

// sourceID derives a stable journal source id from the document identity so
// a replayed request collides with the unique source constraint instead of
// double posting.
func sourceID(tenantID uuid.UUID, kind, number string) uuid.UUID {
	return uuid.NewSHA1(tenantID, []byte(kind+":"+number))
}

func replay(err error) bool {
	return errors.Is(err, shared.ErrIdempotencyConflict) || ledger.ReplayOf(err)
}

func requirePaymentEligible(ctx context.Context, tx TxRepository, tenantID uuid.UUID, accountID int64) error {
	states, err := tx.AccountStates(ctx, tenantID, []int64{accountID})
	if err != nil {
		return err
	}
	state, ok := states[accountID]
	if !ok || !state.Active || !state.PaymentEligible {
		return fmt.Errorf("%w: account %d", ErrNotPaymentEligible, accountID)
	}
	return nil
}

func settlementStatus(due, paid decimal.Decimal) DocStatus {
	switch {
	case paid.GreaterThanOrEqual(due):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidLine)
	}
	for i, line := range lines {
		if line.ItemID == nil && line.AccountID == nil {
			return fmt.Errorf("%w: line %d needs an item or an account", ErrInvalidLine, i)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("%w: line %d quantity %s", ErrInvalidLine, i, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d unit price %s", ErrInvalidLine, i, line.UnitPrice)
		}
	}
	return nil
}

func validateAdjustment(reason inventory.Reason, direction inventory.Direction) error {
	switch reason {
	case inventory.ReasonDamaged, inventory.ReasonTheft, inventory.ReasonExpired, inventory.ReasonSample, inventory.ReasonTransferOut:
		if direction != inventory.DirectionOut {
			return fmt.Errorf("%w: %s requires negative quantity", ErrUnknownReason, reason)
		}
	case inventory.ReasonFound, inventory.ReasonOpening, inventory.ReasonTransferIn:
		if direction != inventory.DirectionIn {
			return fmt.Errorf("%w: %s requires positive quantity", ErrUnknownReason, reason)
		}
	case inventory.ReasonCountAdjustment:
		// Either direction.
	default:
		return fmt.Errorf("%w: %s", ErrUnknownReason, reason)
	}
	return nil
}

// adjustmentContra picks the non-inventory leg of an adjustment journal.
func adjustmentContra(reason inventory.Reason, direction inventory.Direction, defaults tenants.DefaultAccounts) (int64, error) {
	switch reason {
	case inventory.ReasonDamaged, inventory.ReasonTheft, inventory.ReasonExpired, inventory.ReasonSample:
		return defaults.ShrinkageExpense, nil
	case inventory.ReasonFound:
		return defaults.InventoryGain, nil
	case inventory.ReasonOpening:
		return defaults.OpeningEquity, nil
	case inventory.ReasonCountAdjustment:
		if direction == inventory.DirectionOut {
			return defaults.ShrinkageExpense, nil
		}
		return defaults.InventoryGain, nil
	case inventory.ReasonTransferIn, inventory.ReasonTransferOut:
		// Transfers move value between locations of the same asset account.
		return defaults.InventoryAsset, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownReason, reason)
	}
}
