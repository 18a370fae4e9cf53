package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/shared"
)

// TxRepository exposes the operations a movement needs inside one
// transaction. The orchestrator binds it to the same transaction as the
// journal posting so costing and ledger effects commit together.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, tenantID uuid.UUID, itemID int64) (Item, error)
	UpdateItemStock(ctx context.Context, item Item) error
	InsertMovement(ctx context.Context, m StockMovement) (int64, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	// MovementUnitCost returns the unit cost recorded by the earlier
	// movement matching reason and reference, for costing returns at the
	// WAC that applied when the goods left.
	MovementUnitCost(ctx context.Context, tenantID uuid.UUID, itemID int64, reason Reason, reference string) (decimal.Decimal, error)
	// LinkMovementJournal backfills the journal reference once the posting
	// that covers the movement exists in the same transaction.
	LinkMovementJournal(ctx context.Context, tenantID uuid.UUID, movementID, journalID int64) error
}

// movementHook observes every successfully applied movement. Set once at
// startup; it may fire inside a transaction that later rolls back, which
// counter-style observers tolerate.
var movementHook func(direction, reason string)

// ObserveMovements registers fn to run after each applied movement.
func ObserveMovements(fn func(direction, reason string)) {
	movementHook = fn
}

// ApplyTx runs one movement through the weighted-average costing algorithm
// against an already-open transaction: it locks the item row, recomputes
// quantity and WAC, snapshots both sides into an immutable StockMovement and
// returns it with the TotalCost the caller posts to the ledger.
func ApplyTx(ctx context.Context, tx TxRepository, req MovementRequest) (StockMovement, Item, error) {
	if !req.Quantity.IsPositive() {
		return StockMovement{}, Item{}, ErrInvalidQuantity
	}
	if req.Direction == DirectionIn && req.UnitCost.IsNegative() {
		return StockMovement{}, Item{}, ErrInvalidUnitCost
	}
	item, err := tx.GetItemForUpdate(ctx, req.TenantID, req.ItemID)
	if err != nil {
		return StockMovement{}, Item{}, err
	}

	movement := StockMovement{
		TenantID:   req.TenantID,
		ItemID:     item.ID,
		Direction:  req.Direction,
		Reason:     req.Reason,
		Quantity:   req.Quantity,
		QtyBefore:  item.QuantityOnHand,
		WACBefore:  item.WeightedAverage,
		JournalID:  req.JournalID,
		Reference:  req.Reference,
		OccurredAt: req.OccurredAt,
	}

	switch req.Direction {
	case DirectionIn:
		item.QuantityOnHand, item.WeightedAverage = costIn(item.QuantityOnHand, item.WeightedAverage, req.Quantity, req.UnitCost)
		movement.UnitCost = shared.RoundCost(req.UnitCost)
		movement.TotalCost = shared.RoundMoney(req.Quantity.Mul(req.UnitCost))
	case DirectionOut:
		remaining := item.QuantityOnHand.Sub(req.Quantity)
		if remaining.IsNegative() && !req.AllowNegative {
			return StockMovement{}, Item{}, fmt.Errorf("%w: %s on hand, %s requested",
				ErrInsufficientStock, item.QuantityOnHand.String(), req.Quantity.String())
		}
		// Disposal never moves the average; WAC is an asset-side figure.
		// It holds through a drain to zero, and the next receipt into
		// zero stock re-seeds it from the incoming cost anyway.
		movement.UnitCost = item.WeightedAverage
		movement.TotalCost = shared.RoundMoney(req.Quantity.Mul(item.WeightedAverage))
		item.QuantityOnHand = remaining
	default:
		return StockMovement{}, Item{}, fmt.Errorf("inventory: unknown direction %q", req.Direction)
	}

	movement.QtyAfter = item.QuantityOnHand
	movement.WACAfter = item.WeightedAverage

	if err := tx.UpdateItemStock(ctx, item); err != nil {
		return StockMovement{}, Item{}, err
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockMovement{}, Item{}, err
	}
	movement.ID = id
	if movementHook != nil {
		movementHook(string(movement.Direction), string(movement.Reason))
	}
	return movement, item, nil
}

// costIn folds an incoming lot into the running weighted average:
// (onHand*wac + inQty*inCost) / (onHand + inQty), kept at four fractional
// digits so repeated receipts do not drift.
func costIn(onHand, wac, inQty, inCost decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	newQty := onHand.Add(inQty)
	if !newQty.IsPositive() {
		// Receiving into negative stock; the incoming cost becomes the average.
		return newQty, shared.RoundCost(inCost)
	}
	current := onHand.Mul(wac)
	incoming := inQty.Mul(inCost)
	newWAC := current.Add(incoming).DivRound(newQty, shared.CostScale)
	if newWAC.IsNegative() {
		newWAC = decimal.Zero
	}
	return newQty, newWAC
}
