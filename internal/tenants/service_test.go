package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	tenants  map[uuid.UUID]Tenant
	defaults map[uuid.UUID]map[string]int64
	reads    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		tenants:  make(map[uuid.UUID]Tenant),
		defaults: make(map[uuid.UUID]map[string]int64),
	}
}

func (m *memoryRepo) GetTenant(_ context.Context, id uuid.UUID) (Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (m *memoryRepo) GetDefaultAccounts(_ context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	m.reads++
	d, ok := m.defaults[tenantID]
	if !ok {
		return map[string]int64{}, nil
	}
	return d, nil
}

func (m *memoryRepo) SetDefaultAccount(_ context.Context, tenantID uuid.UUID, key string, accountID int64) error {
	d, ok := m.defaults[tenantID]
	if !ok {
		d = make(map[string]int64)
		m.defaults[tenantID] = d
	}
	d[key] = accountID
	return nil
}

func fullMapping() map[string]int64 {
	return map[string]int64{
		KeyReceivable:       2,
		KeyPayable:          3,
		KeyCash:             1,
		KeyRevenue:          4,
		KeyTaxPayable:       5,
		KeyCOGS:             6,
		KeyInventoryAsset:   7,
		KeyShrinkageExpense: 8,
		KeyInventoryGain:    9,
		KeyOpeningEquity:    10,
	}
}

func TestResolveCachesMapping(t *testing.T) {
	repo := newMemoryRepo()
	tenantID := uuid.New()
	repo.defaults[tenantID] = fullMapping()
	svc := NewService(repo)

	first, err := svc.Resolve(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, int64(2), first.Receivable)
	require.Equal(t, int64(7), first.InventoryAsset)

	_, err = svc.Resolve(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.reads)
}

func TestResolveMissingKey(t *testing.T) {
	repo := newMemoryRepo()
	tenantID := uuid.New()
	partial := fullMapping()
	delete(partial, KeyOpeningEquity)
	repo.defaults[tenantID] = partial
	svc := NewService(repo)

	_, err := svc.Resolve(context.Background(), tenantID)
	require.ErrorIs(t, err, ErrMappingNotFound)
	require.Contains(t, err.Error(), KeyOpeningEquity)
}

func TestConfigureInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo()
	tenantID := uuid.New()
	repo.defaults[tenantID] = fullMapping()
	svc := NewService(repo)

	before, err := svc.Resolve(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, int64(4), before.Revenue)

	require.NoError(t, svc.Configure(context.Background(), tenantID, KeyRevenue, 44))

	after, err := svc.Resolve(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, int64(44), after.Revenue)
}

func TestCurrency(t *testing.T) {
	repo := newMemoryRepo()
	tenantID := uuid.New()
	repo.tenants[tenantID] = Tenant{ID: tenantID, Name: "Demo", Currency: "KES"}
	svc := NewService(repo)

	code, err := svc.Currency(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, "KES", code)

	_, err = svc.Currency(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrTenantNotFound)
}
