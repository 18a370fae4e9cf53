package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vitabu-erp/vitabu/internal/inventory"
)

// ReorderSource lists items at or below their reorder level.
type ReorderSource interface {
	ItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]inventory.Item, error)
}

// ReorderScanJob flags low stock across all tenants. It only reports; the
// purchasing decision stays with the owner.
type ReorderScanJob struct {
	items   ReorderSource
	tenants TenantSource
	logger  *slog.Logger
}

func NewReorderScanJob(items ReorderSource, tenants TenantSource, logger *slog.Logger) *ReorderScanJob {
	return &ReorderScanJob{items: items, tenants: tenants, logger: logger}
}

// Handle processes TaskReorderScan tasks.
func (j *ReorderScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	ids, err := j.tenants.ListTenantIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		items, err := j.items.ItemsBelowReorder(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			j.logger.Warn("item at or below reorder level",
				slog.String("tenant", id.String()),
				slog.String("sku", item.SKU),
				slog.String("onHand", item.QuantityOnHand.String()),
				slog.String("reorderLevel", item.ReorderLevel.String()))
		}
	}
	return nil
}
