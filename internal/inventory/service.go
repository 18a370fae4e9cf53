package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitabu-erp/vitabu/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (Item, error)
	GetItemBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (Item, error)
	ListItems(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Item, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	HasMovements(ctx context.Context, tenantID uuid.UUID, itemID int64) (bool, error)
	SetItemActive(ctx context.Context, tenantID uuid.UUID, itemID int64, active bool) error
	ItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]Item, error)
}

// MovementFilter narrows stock movement listings.
type MovementFilter struct {
	TenantID uuid.UUID
	ItemID   int64
	From     time.Time
	To       time.Time
	Limit    int
}

// AuditPort records inventory events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns item master data and read access to the movement ledger.
// Movements themselves are applied through ApplyTx inside an orchestrator
// transaction so the matching journal can never be separated from them.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateItem registers an item with zero stock. Opening balances are costed
// IN movements and go through the orchestrator so they hit the ledger too.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	if input.TenantID == uuid.Nil {
		return Item{}, errors.New("inventory: tenant required")
	}
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return Item{}, errors.New("inventory: sku required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return Item{}, errors.New("inventory: name required")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return Item{}, ErrInvalidUnitCost
	}
	now := s.now()
	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertItem(ctx, Item{
			TenantID:        input.TenantID,
			SKU:             sku,
			Name:            strings.TrimSpace(input.Name),
			Unit:            input.Unit,
			CostPrice:       input.CostPrice,
			SellingPrice:    input.SellingPrice,
			ReorderLevel:    input.ReorderLevel,
			AssetAccountID:  input.AssetAccountID,
			IncomeAccountID: input.IncomeAccountID,
			COGSAccountID:   input.COGSAccountID,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			Action:   "item.create",
			Entity:   "inventory_item",
			EntityID: created.SKU,
			Meta:     map[string]any{"id": created.ID},
			At:       now,
		})
	}
	return created, nil
}

// Deactivate retires an item. A soft request always succeeds; anything else
// is refused for items holding stock or carrying movement history. There is
// no hard delete.
func (s *Service) Deactivate(ctx context.Context, tenantID uuid.UUID, itemID int64, soft bool) error {
	item, err := s.repo.GetItem(ctx, tenantID, itemID)
	if err != nil {
		return err
	}
	if !soft {
		if !item.QuantityOnHand.IsZero() {
			return fmt.Errorf("%w: %s holds %s on hand", ErrItemInUse, item.SKU, item.QuantityOnHand)
		}
		moved, err := s.repo.HasMovements(ctx, tenantID, itemID)
		if err != nil {
			return err
		}
		if moved {
			return fmt.Errorf("%w: %s has movement history", ErrItemInUse, item.SKU)
		}
	}
	if err := s.repo.SetItemActive(ctx, tenantID, itemID, false); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			Action:   "item.deactivate",
			Entity:   "inventory_item",
			EntityID: item.SKU,
			At:       s.now(),
		})
	}
	return nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, tenantID, itemID)
}

// ListItems returns the tenant's items.
func (s *Service) ListItems(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Item, error) {
	return s.repo.ListItems(ctx, tenantID, activeOnly)
}

// Movements returns the immutable movement history, oldest first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	if filter.TenantID == uuid.Nil || filter.ItemID == 0 {
		return nil, errors.New("inventory: tenant and item required")
	}
	return s.repo.ListMovements(ctx, filter)
}

// ItemsBelowReorder lists active items at or under their reorder level.
func (s *Service) ItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	return s.repo.ItemsBelowReorder(ctx, tenantID)
}
