package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryStock struct {
	nextID    int64
	items     map[int64]Item
	movements []StockMovement
}

func newMemoryStock() *memoryStock {
	return &memoryStock{items: make(map[int64]Item)}
}

func (m *memoryStock) addItem(item Item) Item {
	m.nextID++
	item.ID = m.nextID
	item.IsActive = true
	m.items[item.ID] = item
	return item
}

func (m *memoryStock) GetItemForUpdate(_ context.Context, tenantID uuid.UUID, itemID int64) (Item, error) {
	item, ok := m.items[itemID]
	if !ok || item.TenantID != tenantID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *memoryStock) UpdateItemStock(_ context.Context, item Item) error {
	m.items[item.ID] = item
	return nil
}

func (m *memoryStock) InsertMovement(_ context.Context, mv StockMovement) (int64, error) {
	mv.ID = int64(len(m.movements) + 1)
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memoryStock) InsertItem(_ context.Context, item Item) (Item, error) {
	for _, existing := range m.items {
		if existing.TenantID == item.TenantID && existing.SKU == item.SKU {
			return Item{}, fmt.Errorf("%w: %s", ErrDuplicateSKU, item.SKU)
		}
	}
	return m.addItem(item), nil
}

func (m *memoryStock) MovementUnitCost(_ context.Context, tenantID uuid.UUID, itemID int64, reason Reason, reference string) (decimal.Decimal, error) {
	for i := len(m.movements) - 1; i >= 0; i-- {
		mv := m.movements[i]
		if mv.TenantID == tenantID && mv.ItemID == itemID && mv.Reason == reason && mv.Reference == reference {
			return mv.UnitCost, nil
		}
	}
	return decimal.Zero, ErrMovementCostUnknown
}

func (m *memoryStock) LinkMovementJournal(_ context.Context, tenantID uuid.UUID, movementID, journalID int64) error {
	for i, mv := range m.movements {
		if mv.TenantID == tenantID && mv.ID == movementID {
			m.movements[i].JournalID = &journalID
			return nil
		}
	}
	return ErrItemNotFound
}

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func receive(t *testing.T, repo *memoryStock, tenantID uuid.UUID, itemID int64, quantity, unitCost string) StockMovement {
	t.Helper()
	mv, _, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:  tenantID,
		ItemID:    itemID,
		Direction: DirectionIn,
		Reason:    ReasonPurchase,
		Quantity:  qty(quantity),
		UnitCost:  qty(unitCost),
	})
	require.NoError(t, err)
	return mv
}

func TestWeightedAverageOnReceipt(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})

	receive(t, repo, tenantID, item.ID, "10", "100")
	mv := receive(t, repo, tenantID, item.ID, "10", "200")

	require.True(t, mv.WACBefore.Equal(qty("100")))
	require.True(t, mv.WACAfter.Equal(qty("150")), "got %s", mv.WACAfter)
	require.True(t, mv.QtyAfter.Equal(qty("20")))

	got := repo.items[item.ID]
	require.True(t, got.QuantityOnHand.Equal(qty("20")))
	require.True(t, got.WeightedAverage.Equal(qty("150")))
}

func TestIssueNeverMovesAverage(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})
	receive(t, repo, tenantID, item.ID, "10", "100")
	receive(t, repo, tenantID, item.ID, "10", "200")

	mv, updated, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:  tenantID,
		ItemID:    item.ID,
		Direction: DirectionOut,
		Reason:    ReasonSale,
		Quantity:  qty("5"),
	})
	require.NoError(t, err)
	require.True(t, mv.UnitCost.Equal(qty("150")))
	require.True(t, mv.TotalCost.Equal(qty("750")))
	require.True(t, updated.QuantityOnHand.Equal(qty("15")))
	require.True(t, updated.WeightedAverage.Equal(qty("150")))
}

func TestIssueBeyondStock(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})
	receive(t, repo, tenantID, item.ID, "3", "50")

	_, _, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:  tenantID,
		ItemID:    item.ID,
		Direction: DirectionOut,
		Reason:    ReasonSale,
		Quantity:  qty("5"),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Contains(t, err.Error(), "3 on hand")

	mv, updated, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:      tenantID,
		ItemID:        item.ID,
		Direction:     DirectionOut,
		Reason:        ReasonCountAdjustment,
		Quantity:      qty("5"),
		AllowNegative: true,
	})
	require.NoError(t, err)
	require.True(t, updated.QuantityOnHand.Equal(qty("-2")))
	require.True(t, mv.UnitCost.Equal(qty("50")))
}

func TestAverageHoldsThroughDrainToZero(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})
	receive(t, repo, tenantID, item.ID, "4", "25")

	_, updated, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:  tenantID,
		ItemID:    item.ID,
		Direction: DirectionOut,
		Reason:    ReasonSale,
		Quantity:  qty("4"),
	})
	require.NoError(t, err)
	require.True(t, updated.QuantityOnHand.IsZero())
	require.True(t, updated.WeightedAverage.Equal(qty("25")))

	// The next receipt into zero stock re-seeds the average from cost.
	mv := receive(t, repo, tenantID, item.ID, "2", "30")
	require.True(t, mv.WACAfter.Equal(qty("30")))
}

func TestApplyNotifiesObserver(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})

	var seen []string
	ObserveMovements(func(direction, reason string) {
		seen = append(seen, direction+" "+reason)
	})
	defer ObserveMovements(nil)

	receive(t, repo, tenantID, item.ID, "4", "25")
	_, _, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:  tenantID,
		ItemID:    item.ID,
		Direction: DirectionOut,
		Reason:    ReasonSale,
		Quantity:  qty("1"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"IN PURCHASE", "OUT SALE"}, seen)
}

func TestReceiptIntoNegativeStock(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})
	receive(t, repo, tenantID, item.ID, "2", "10")
	_, _, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID:      tenantID,
		ItemID:        item.ID,
		Direction:     DirectionOut,
		Reason:        ReasonCountAdjustment,
		Quantity:      qty("5"),
		AllowNegative: true,
	})
	require.NoError(t, err)

	mv := receive(t, repo, tenantID, item.ID, "2", "40")
	// Still negative after the receipt: the incoming cost becomes the average.
	require.True(t, mv.QtyAfter.Equal(qty("-1")))
	require.True(t, mv.WACAfter.Equal(qty("40")))
}

func TestCostRounding(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})
	receive(t, repo, tenantID, item.ID, "3", "10")
	mv := receive(t, repo, tenantID, item.ID, "4", "12.55")

	// (3*10 + 4*12.55) / 7 = 11.4571...
	require.True(t, mv.WACAfter.Equal(qty("11.4571")), "got %s", mv.WACAfter)
}

func TestMovementValidation(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})

	_, _, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID: tenantID, ItemID: item.ID, Direction: DirectionIn,
		Reason: ReasonPurchase, Quantity: qty("0"), UnitCost: qty("5"),
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = ApplyTx(context.Background(), repo, MovementRequest{
		TenantID: tenantID, ItemID: item.ID, Direction: DirectionIn,
		Reason: ReasonPurchase, Quantity: qty("1"), UnitCost: qty("-5"),
	})
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, _, err = ApplyTx(context.Background(), repo, MovementRequest{
		TenantID: tenantID, ItemID: 99, Direction: DirectionIn,
		Reason: ReasonPurchase, Quantity: qty("1"), UnitCost: qty("5"),
	})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestMovementSnapshots(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})

	first := receive(t, repo, tenantID, item.ID, "10", "100")
	require.True(t, first.QtyBefore.IsZero())
	require.True(t, first.WACBefore.IsZero())
	require.True(t, first.QtyAfter.Equal(qty("10")))
	require.True(t, first.WACAfter.Equal(qty("100")))

	second := receive(t, repo, tenantID, item.ID, "5", "160")
	require.True(t, second.QtyBefore.Equal(first.QtyAfter))
	require.True(t, second.WACBefore.Equal(first.WACAfter))
}

func TestMovementUnitCostLookup(t *testing.T) {
	repo := newMemoryStock()
	tenantID := uuid.New()
	item := repo.addItem(Item{TenantID: tenantID, SKU: "WIDGET"})
	receive(t, repo, tenantID, item.ID, "10", "100")

	_, _, err := ApplyTx(context.Background(), repo, MovementRequest{
		TenantID: tenantID, ItemID: item.ID, Direction: DirectionOut,
		Reason: ReasonSale, Quantity: qty("2"), Reference: "INV-7",
	})
	require.NoError(t, err)

	// Average rises after the sale; the return still costs at the sale-time WAC.
	receive(t, repo, tenantID, item.ID, "10", "300")

	cost, err := repo.MovementUnitCost(context.Background(), tenantID, item.ID, ReasonSale, "INV-7")
	require.NoError(t, err)
	require.True(t, cost.Equal(qty("100")))

	_, err = repo.MovementUnitCost(context.Background(), tenantID, item.ID, ReasonSale, "INV-404")
	require.ErrorIs(t, err, ErrMovementCostUnknown)
}
