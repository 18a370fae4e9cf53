package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction enumerates stock movement directions.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Reason enumerates why stock moved. Reasons drive which ledger accounts the
// orchestrator posts against.
type Reason string

const (
	ReasonPurchase        Reason = "PURCHASE"
	ReasonSale            Reason = "SALE"
	ReasonCustomerReturn  Reason = "CUSTOMER_RETURN"
	ReasonSupplierReturn  Reason = "SUPPLIER_RETURN"
	ReasonDamaged         Reason = "DAMAGED"
	ReasonTheft           Reason = "THEFT"
	ReasonExpired         Reason = "EXPIRED"
	ReasonFound           Reason = "FOUND"
	ReasonCountAdjustment Reason = "COUNT_ADJUSTMENT"
	ReasonTransferIn      Reason = "TRANSFER_IN"
	ReasonTransferOut     Reason = "TRANSFER_OUT"
	ReasonSample          Reason = "SAMPLE"
	ReasonOpening         Reason = "OPENING_BALANCE"
)

// Item is a tracked inventory item. QuantityOnHand and WeightedAverageCost
// change only through movements applied by the costing engine.
type Item struct {
	ID               int64
	TenantID         uuid.UUID
	SKU              string
	Name             string
	Unit             string
	QuantityOnHand   decimal.Decimal
	WeightedAverage  decimal.Decimal
	CostPrice        decimal.Decimal
	SellingPrice     decimal.Decimal
	ReorderLevel     decimal.Decimal
	AssetAccountID   *int64
	IncomeAccountID  *int64
	COGSAccountID    *int64
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StockMovement is the immutable audit record of one inventory change. It
// snapshots quantity and weighted-average cost on both sides of the movement
// and is never updated or deleted.
type StockMovement struct {
	ID         int64
	TenantID   uuid.UUID
	ItemID     int64
	Direction  Direction
	Reason     Reason
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	TotalCost  decimal.Decimal
	QtyBefore  decimal.Decimal
	QtyAfter   decimal.Decimal
	WACBefore  decimal.Decimal
	WACAfter   decimal.Decimal
	JournalID  *int64
	Reference  string
	OccurredAt time.Time
}

// MovementRequest describes one movement for the costing engine.
type MovementRequest struct {
	TenantID  uuid.UUID
	ItemID    int64
	Direction Direction
	Reason    Reason
	Quantity  decimal.Decimal
	// UnitCost is required for IN movements; OUT movements always consume at
	// the current weighted average.
	UnitCost decimal.Decimal
	// AllowNegative permits stock below zero for documented adjustments.
	AllowNegative bool
	Reference     string
	JournalID     *int64
	OccurredAt    time.Time
}

// CreateItemInput groups fields to register an item.
type CreateItemInput struct {
	TenantID        uuid.UUID
	SKU             string
	Name            string
	Unit            string
	CostPrice       decimal.Decimal
	SellingPrice    decimal.Decimal
	ReorderLevel    decimal.Decimal
	AssetAccountID  *int64
	IncomeAccountID *int64
	COGSAccountID   *int64
}

var (
	// ErrInsufficientStock indicates an OUT movement larger than on-hand
	// quantity without an explicit negative-stock override.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates a zero or negative movement quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrItemNotFound indicates a missing item.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrDuplicateSKU indicates the SKU exists for the tenant.
	ErrDuplicateSKU = errors.New("inventory: duplicate sku")
	// ErrItemInUse indicates the item still has stock or movement history.
	ErrItemInUse = errors.New("inventory: item has stock or movement history")
	// ErrMovementCostUnknown indicates no prior sale movement to cost a
	// return against.
	ErrMovementCostUnknown = errors.New("inventory: original movement cost not found")
)
