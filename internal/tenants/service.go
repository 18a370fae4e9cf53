package tenants

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Service resolves tenant metadata and posting defaults. Resolved defaults are
// cached in-process; the mapping only changes through setup, so a stale read
// is bounded by Invalidate calls from the setup path.
type Service struct {
	repo RepositoryPort

	mu       sync.RWMutex
	defaults map[uuid.UUID]DefaultAccounts
	currency map[uuid.UUID]string
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{
		repo:     repo,
		defaults: make(map[uuid.UUID]DefaultAccounts),
		currency: make(map[uuid.UUID]string),
	}
}

// Resolve returns the default posting accounts for the tenant.
func (s *Service) Resolve(ctx context.Context, tenantID uuid.UUID) (DefaultAccounts, error) {
	s.mu.RLock()
	cached, ok := s.defaults[tenantID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	keyed, err := s.repo.GetDefaultAccounts(ctx, tenantID)
	if err != nil {
		return DefaultAccounts{}, err
	}
	resolved, err := FromKeyed(keyed)
	if err != nil {
		return DefaultAccounts{}, err
	}
	s.mu.Lock()
	s.defaults[tenantID] = resolved
	s.mu.Unlock()
	return resolved, nil
}

// Currency returns the tenant's ISO currency code.
func (s *Service) Currency(ctx context.Context, tenantID uuid.UUID) (string, error) {
	s.mu.RLock()
	cached, ok := s.currency[tenantID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	tenant, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.currency[tenantID] = tenant.Currency
	s.mu.Unlock()
	return tenant.Currency, nil
}

// Configure updates one default account binding and drops the cached mapping.
func (s *Service) Configure(ctx context.Context, tenantID uuid.UUID, key string, accountID int64) error {
	if err := s.repo.SetDefaultAccount(ctx, tenantID, key, accountID); err != nil {
		return err
	}
	s.Invalidate(tenantID)
	return nil
}

// Invalidate forgets cached state for the tenant.
func (s *Service) Invalidate(tenantID uuid.UUID) {
	s.mu.Lock()
	delete(s.defaults, tenantID)
	delete(s.currency, tenantID)
	s.mu.Unlock()
}
