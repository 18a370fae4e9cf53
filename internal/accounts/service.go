package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitabu-erp/vitabu/internal/shared"
)

// RepositoryPort defines data access for the account directory.
type RepositoryPort interface {
	Insert(ctx context.Context, a Account) (Account, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error)
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Account, error)
	HasJournalLines(ctx context.Context, tenantID uuid.UUID, id int64) (bool, error)
	SetActive(ctx context.Context, tenantID uuid.UUID, id int64, active bool) error
}

// AuditPort records directory changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the chart of accounts for every tenant.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the directory service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create adds an account to the tenant's chart of accounts.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if input.TenantID == uuid.Nil {
		return Account{}, errors.New("accounts: tenant required")
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return Account{}, errors.New("accounts: code required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return Account{}, errors.New("accounts: name required")
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidType, input.Type)
	}
	if input.ParentID != nil {
		parent, err := s.repo.Get(ctx, input.TenantID, *input.ParentID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return Account{}, ErrParentMismatch
			}
			return Account{}, err
		}
		if parent.Type != input.Type {
			return Account{}, fmt.Errorf("%w: parent is %s", ErrParentMismatch, parent.Type)
		}
	}
	now := s.now()
	created, err := s.repo.Insert(ctx, Account{
		TenantID:          input.TenantID,
		Code:              code,
		Name:              strings.TrimSpace(input.Name),
		Type:              input.Type,
		Subtype:           input.Subtype,
		ParentID:          input.ParentID,
		IsSystem:          input.IsSystem,
		IsContra:          input.IsContra,
		IsPaymentEligible: input.IsPaymentEligible,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			Action:   "account.create",
			Entity:   "account",
			EntityID: created.Code,
			Meta:     map[string]any{"id": created.ID, "type": string(created.Type)},
			At:       now,
		})
	}
	return created, nil
}

// Deactivate retires an account. A soft request always succeeds; anything
// else is refused for system accounts and accounts referenced by journal
// lines. There is no hard delete.
func (s *Service) Deactivate(ctx context.Context, tenantID uuid.UUID, id int64, soft bool) error {
	acct, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !soft {
		if acct.IsSystem {
			return fmt.Errorf("%w: system account %s", ErrAccountInUse, acct.Code)
		}
		used, err := s.repo.HasJournalLines(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: %s has journal activity", ErrAccountInUse, acct.Code)
		}
	}
	if err := s.repo.SetActive(ctx, tenantID, id, false); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: tenantID,
			Action:   "account.deactivate",
			Entity:   "account",
			EntityID: acct.Code,
			Meta:     map[string]any{"soft": soft},
			At:       s.now(),
		})
	}
	return nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns every account for the tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Account, error) {
	return s.repo.List(ctx, tenantID, activeOnly)
}

// ResolveTree builds the account forest used for report sectioning.
func (s *Service) ResolveTree(ctx context.Context, tenantID uuid.UUID) (*Tree, error) {
	accts, err := s.repo.List(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	return BuildTree(accts)
}
