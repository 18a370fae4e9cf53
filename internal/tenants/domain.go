package tenants

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tenant is one business using the engine. Every ledger row is scoped by
// Tenant.ID; Currency is the single ISO code all amounts are recorded in.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Default account keys. The mapping from key to account id is configured once
// at tenant setup and resolved here instead of searching by code at call sites.
const (
	KeyReceivable       = "settlement.receivable"
	KeyPayable          = "settlement.payable"
	KeyCash             = "settlement.cash"
	KeyRevenue          = "sales.revenue"
	KeyTaxPayable       = "settlement.tax"
	KeyCOGS             = "sales.cogs"
	KeyInventoryAsset   = "inventory.asset"
	KeyShrinkageExpense = "inventory.shrinkage"
	KeyInventoryGain    = "inventory.gain"
	KeyOpeningEquity    = "equity.opening"
)

// DefaultAccounts is the resolved per-tenant posting map.
type DefaultAccounts struct {
	Receivable       int64
	Payable          int64
	Cash             int64
	Revenue          int64
	TaxPayable       int64
	COGS             int64
	InventoryAsset   int64
	ShrinkageExpense int64
	InventoryGain    int64
	OpeningEquity    int64
}

var (
	// ErrTenantNotFound indicates an unknown tenant id.
	ErrTenantNotFound = errors.New("tenants: tenant not found")
	// ErrMappingNotFound indicates an unconfigured default account key.
	ErrMappingNotFound = errors.New("tenants: default account mapping not found")
)

// FromKeyed assembles DefaultAccounts from the raw key to account-id rows,
// failing on the first missing key so misconfiguration shows up at setup.
func FromKeyed(m map[string]int64) (DefaultAccounts, error) {
	var out DefaultAccounts
	for _, binding := range []struct {
		key  string
		dest *int64
	}{
		{KeyReceivable, &out.Receivable},
		{KeyPayable, &out.Payable},
		{KeyCash, &out.Cash},
		{KeyRevenue, &out.Revenue},
		{KeyTaxPayable, &out.TaxPayable},
		{KeyCOGS, &out.COGS},
		{KeyInventoryAsset, &out.InventoryAsset},
		{KeyShrinkageExpense, &out.ShrinkageExpense},
		{KeyInventoryGain, &out.InventoryGain},
		{KeyOpeningEquity, &out.OpeningEquity},
	} {
		id, ok := m[binding.key]
		if !ok || id == 0 {
			return DefaultAccounts{}, fmt.Errorf("%w: %s", ErrMappingNotFound, binding.key)
		}
		*binding.dest = id
	}
	return out, nil
}
