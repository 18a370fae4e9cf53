package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/shared"
	"github.com/vitabu-erp/vitabu/internal/tenants"
)

// fakeStore backs the full document transaction surface in memory. Every
// write it takes is immediately visible, which is fine for these tests
// because the orchestrator never reads back what a failed branch wrote.
type fakeStore struct {
	tenantID uuid.UUID

	accounts  map[int64]ledger.AccountState
	items     map[int64]inventory.Item
	movements []inventory.StockMovement
	journals  map[int64]ledger.Journal
	invoices  map[int64]Invoice
	bills     map[int64]PurchaseBill
	memos     map[int64]CreditMemo
	keys      map[string]bool
	nextID    int64
}

func newFakeStore(tenantID uuid.UUID) *fakeStore {
	return &fakeStore{
		tenantID: tenantID,
		accounts: make(map[int64]ledger.AccountState),
		items:    make(map[int64]inventory.Item),
		journals: make(map[int64]ledger.Journal),
		invoices: make(map[int64]Invoice),
		bills:    make(map[int64]PurchaseBill),
		memos:    make(map[int64]CreditMemo),
		keys:     make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addItem(item inventory.Item) inventory.Item {
	item.ID = f.id()
	item.TenantID = f.tenantID
	item.IsActive = true
	f.items[item.ID] = item
	return item
}

func (f *fakeStore) journalByNumber(number string) (ledger.Journal, bool) {
	for _, j := range f.journals {
		if j.Number == number {
			return j, true
		}
	}
	return ledger.Journal{}, false
}

func (f *fakeStore) WithDocTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeStore) ReserveKey(_ context.Context, _ uuid.UUID, key string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeStore) AccountStates(_ context.Context, _ uuid.UUID, ids []int64) (map[int64]ledger.AccountState, error) {
	out := make(map[int64]ledger.AccountState, len(ids))
	for _, id := range ids {
		if state, ok := f.accounts[id]; ok {
			out[id] = state
		}
	}
	return out, nil
}

func (f *fakeStore) InsertJournal(_ context.Context, j ledger.Journal) (int64, error) {
	for _, existing := range f.journals {
		if existing.Number == j.Number {
			return 0, fmt.Errorf("%w: %s", ledger.ErrDuplicateNumber, j.Number)
		}
		if existing.SourceModule == j.SourceModule && existing.SourceID == j.SourceID {
			return 0, fmt.Errorf("%w: %s", ledger.ErrSourceAlreadyLinked, j.Number)
		}
	}
	j.ID = f.id()
	f.journals[j.ID] = j
	return j.ID, nil
}

func (f *fakeStore) InsertJournalLines(_ context.Context, journalID int64, lines []ledger.JournalLine) error {
	j := f.journals[journalID]
	j.Lines = lines
	f.journals[journalID] = j
	return nil
}

func (f *fakeStore) GetJournalForUpdate(_ context.Context, _ uuid.UUID, id int64) (ledger.Journal, error) {
	j, ok := f.journals[id]
	if !ok {
		return ledger.Journal{}, ledger.ErrJournalNotFound
	}
	return j, nil
}

func (f *fakeStore) MarkVoid(_ context.Context, _ uuid.UUID, id, reversalID int64) error {
	j, ok := f.journals[id]
	if !ok {
		return ledger.ErrJournalNotFound
	}
	j.Status = ledger.StatusVoid
	j.ReversedByID = &reversalID
	f.journals[id] = j
	return nil
}

func (f *fakeStore) GetItemForUpdate(_ context.Context, _ uuid.UUID, itemID int64) (inventory.Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeStore) UpdateItemStock(_ context.Context, item inventory.Item) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) InsertMovement(_ context.Context, m inventory.StockMovement) (int64, error) {
	m.ID = f.id()
	f.movements = append(f.movements, m)
	return m.ID, nil
}

func (f *fakeStore) InsertItem(_ context.Context, item inventory.Item) (inventory.Item, error) {
	item.ID = f.id()
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeStore) MovementUnitCost(_ context.Context, _ uuid.UUID, itemID int64, reason inventory.Reason, reference string) (decimal.Decimal, error) {
	for i := len(f.movements) - 1; i >= 0; i-- {
		m := f.movements[i]
		if m.ItemID == itemID && m.Reason == reason && m.Reference == reference {
			return m.UnitCost, nil
		}
	}
	return decimal.Zero, inventory.ErrMovementCostUnknown
}

func (f *fakeStore) LinkMovementJournal(_ context.Context, _ uuid.UUID, movementID, journalID int64) error {
	for i, m := range f.movements {
		if m.ID == movementID {
			f.movements[i].JournalID = &journalID
			return nil
		}
	}
	return inventory.ErrItemNotFound
}

func (f *fakeStore) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	inv.ID = f.id()
	for i := range inv.Lines {
		inv.Lines[i].ID = f.id()
		inv.Lines[i].InvoiceID = inv.ID
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeStore) GetInvoiceForUpdate(_ context.Context, _ uuid.UUID, invoiceID int64) (Invoice, error) {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeStore) SetInvoiceJournals(_ context.Context, _ uuid.UUID, invoiceID int64, revenueJournalID, cogsJournalID *int64) error {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.RevenueJournalID = revenueJournalID
	inv.COGSJournalID = cogsJournalID
	f.invoices[invoiceID] = inv
	return nil
}

func (f *fakeStore) UpdateInvoiceSettlement(_ context.Context, _ uuid.UUID, invoiceID int64, paid, refunded decimal.Decimal, status DocStatus) error {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.PaidAmount = paid
	inv.RefundedAmount = refunded
	inv.Status = status
	f.invoices[invoiceID] = inv
	return nil
}

func (f *fakeStore) ReturnedQty(_ context.Context, _ uuid.UUID, invoiceID, itemID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, memo := range f.memos {
		if memo.InvoiceID != invoiceID {
			continue
		}
		for _, line := range memo.Lines {
			if line.ItemID == itemID {
				total = total.Add(line.Quantity)
			}
		}
	}
	return total, nil
}

func (f *fakeStore) InsertCreditMemo(_ context.Context, memo CreditMemo) (CreditMemo, error) {
	memo.ID = f.id()
	for i := range memo.Lines {
		memo.Lines[i].ID = f.id()
		memo.Lines[i].MemoID = memo.ID
	}
	f.memos[memo.ID] = memo
	return memo, nil
}

func (f *fakeStore) InsertBill(_ context.Context, bill PurchaseBill) (PurchaseBill, error) {
	bill.ID = f.id()
	for i := range bill.Lines {
		bill.Lines[i].ID = f.id()
		bill.Lines[i].BillID = bill.ID
	}
	f.bills[bill.ID] = bill
	return bill, nil
}

func (f *fakeStore) GetBillForUpdate(_ context.Context, _ uuid.UUID, billID int64) (PurchaseBill, error) {
	bill, ok := f.bills[billID]
	if !ok {
		return PurchaseBill{}, ErrBillNotFound
	}
	return bill, nil
}

func (f *fakeStore) UpdateBillSettlement(_ context.Context, _ uuid.UUID, billID int64, paid decimal.Decimal, status DocStatus) error {
	bill, ok := f.bills[billID]
	if !ok {
		return ErrBillNotFound
	}
	bill.PaidAmount = paid
	bill.Status = status
	f.bills[billID] = bill
	return nil
}

func (f *fakeStore) GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID int64) (Invoice, error) {
	return f.GetInvoiceForUpdate(ctx, tenantID, invoiceID)
}

func (f *fakeStore) FindInvoiceByNumber(_ context.Context, _ uuid.UUID, number string) (Invoice, error) {
	for _, inv := range f.invoices {
		if inv.Number == number {
			return inv, nil
		}
	}
	return Invoice{}, ErrInvoiceNotFound
}

func (f *fakeStore) ListInvoices(_ context.Context, _ uuid.UUID, limit, offset int) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range f.invoices {
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeStore) GetBill(ctx context.Context, tenantID uuid.UUID, billID int64) (PurchaseBill, error) {
	return f.GetBillForUpdate(ctx, tenantID, billID)
}

func (f *fakeStore) FindBillByNumber(_ context.Context, _ uuid.UUID, number string) (PurchaseBill, error) {
	for _, bill := range f.bills {
		if bill.Number == number {
			return bill, nil
		}
	}
	return PurchaseBill{}, ErrBillNotFound
}

func (f *fakeStore) ListBills(_ context.Context, _ uuid.UUID, limit, offset int) ([]PurchaseBill, error) {
	var out []PurchaseBill
	for _, bill := range f.bills {
		out = append(out, bill)
	}
	return out, nil
}

func (f *fakeStore) GetCreditMemo(_ context.Context, _ uuid.UUID, memoID int64) (CreditMemo, error) {
	memo, ok := f.memos[memoID]
	if !ok {
		return CreditMemo{}, ErrInvoiceNotFound
	}
	return memo, nil
}

func (f *fakeStore) FindCreditMemoByNumber(_ context.Context, _ uuid.UUID, number string) (CreditMemo, error) {
	for _, memo := range f.memos {
		if memo.Number == number {
			return memo, nil
		}
	}
	return CreditMemo{}, ErrInvoiceNotFound
}

type fakeTenantRepo struct {
	defaults map[string]int64
}

func (f fakeTenantRepo) GetTenant(_ context.Context, id uuid.UUID) (tenants.Tenant, error) {
	return tenants.Tenant{ID: id, Name: "Demo", Currency: "USD"}, nil
}

func (f fakeTenantRepo) GetDefaultAccounts(_ context.Context, _ uuid.UUID) (map[string]int64, error) {
	return f.defaults, nil
}

func (f fakeTenantRepo) SetDefaultAccount(_ context.Context, _ uuid.UUID, key string, accountID int64) error {
	f.defaults[key] = accountID
	return nil
}

// Well-known account ids used across the trading tests.
const (
	acctCash       int64 = 1
	acctReceivable int64 = 2
	acctPayable    int64 = 3
	acctRevenue    int64 = 4
	acctTax        int64 = 5
	acctCOGS       int64 = 6
	acctInventory  int64 = 7
	acctShrinkage  int64 = 8
	acctGain       int64 = 9
	acctEquity     int64 = 10
	acctBank       int64 = 11
	acctRent       int64 = 12
)

func newFixture(tenantID uuid.UUID) (*Service, *fakeStore) {
	store := newFakeStore(tenantID)
	for id := acctCash; id <= acctRent; id++ {
		store.accounts[id] = ledger.AccountState{Active: true}
	}
	store.accounts[acctCash] = ledger.AccountState{Active: true, PaymentEligible: true}
	store.accounts[acctBank] = ledger.AccountState{Active: true, PaymentEligible: true}

	ten := tenants.NewService(fakeTenantRepo{defaults: map[string]int64{
		tenants.KeyReceivable:       acctReceivable,
		tenants.KeyPayable:          acctPayable,
		tenants.KeyCash:             acctCash,
		tenants.KeyRevenue:          acctRevenue,
		tenants.KeyTaxPayable:       acctTax,
		tenants.KeyCOGS:             acctCOGS,
		tenants.KeyInventoryAsset:   acctInventory,
		tenants.KeyShrinkageExpense: acctShrinkage,
		tenants.KeyInventoryGain:    acctGain,
		tenants.KeyOpeningEquity:    acctEquity,
	}})

	svc := NewService(store, ten, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lineTotal(j ledger.Journal, accountID int64) (debit, credit decimal.Decimal) {
	for _, line := range j.Lines {
		if line.AccountID == accountID {
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
	}
	return debit, credit
}
