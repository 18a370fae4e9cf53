package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vitabu-erp/vitabu/internal/ledger"
)

// Assembler builds report documents from the balance calculator's output.
// It reads committed data only and never locks against posting.
type Assembler struct {
	calc     *ledger.Calculator
	accounts ledger.AccountSource
	activity ledger.ActivityPort
}

func NewAssembler(calc *ledger.Calculator, accountSource ledger.AccountSource, activity ledger.ActivityPort) *Assembler {
	return &Assembler{calc: calc, accounts: accountSource, activity: activity}
}

// Service serves report documents through the cache, deduplicating
// concurrent builds of the same document with singleflight. A nil cache
// builds every request fresh.
type Service struct {
	asm    *Assembler
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

func NewService(asm *Assembler, cache *Cache, logger *slog.Logger) *Service {
	return &Service{asm: asm, cache: cache, logger: logger}
}

func (s *Service) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	var doc TrialBalance
	err := s.cached(ctx, tenantID, "tb", asOf.Format(time.RFC3339), &doc, func() (any, error) {
		return s.asm.buildTrialBalance(ctx, tenantID, asOf)
	})
	return doc, err
}

func (s *Service) ProfitLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (ProfitLoss, error) {
	var doc ProfitLoss
	variant := from.Format(time.RFC3339) + ".." + to.Format(time.RFC3339)
	err := s.cached(ctx, tenantID, "pl", variant, &doc, func() (any, error) {
		return s.asm.buildProfitLoss(ctx, tenantID, from, to)
	})
	return doc, err
}

func (s *Service) BalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
	var doc BalanceSheet
	err := s.cached(ctx, tenantID, "bs", asOf.Format(time.RFC3339), &doc, func() (any, error) {
		return s.asm.buildBalanceSheet(ctx, tenantID, asOf)
	})
	return doc, err
}

func (s *Service) CashFlow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (CashFlow, error) {
	var doc CashFlow
	variant := from.Format(time.RFC3339) + ".." + to.Format(time.RFC3339)
	err := s.cached(ctx, tenantID, "cf", variant, &doc, func() (any, error) {
		return s.asm.buildCashFlow(ctx, tenantID, from, to)
	})
	return doc, err
}

// Invalidate orphans every cached document for the tenant.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil && s.logger != nil {
		s.logger.Warn("report cache invalidation failed", "tenant", tenantID, "error", err)
	}
}

// cached resolves one report document: cache hit, or a deduplicated build
// stored back under the current epoch. Cache errors degrade to a fresh
// build instead of failing the request.
func (s *Service) cached(ctx context.Context, tenantID uuid.UUID, report, variant string, out any, build func() (any, error)) error {
	if s.cache == nil {
		doc, err := build()
		if err != nil {
			return err
		}
		return reassign(out, doc)
	}
	key := s.cache.Key(ctx, tenantID, report, variant)
	hit, err := s.cache.Get(ctx, key, out)
	if err != nil && s.logger != nil {
		s.logger.Warn("report cache read failed", "key", key, "error", err)
	}
	if hit {
		return nil
	}
	doc, err, _ := s.group.Do(key, func() (any, error) {
		doc, err := build()
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, doc); err != nil && s.logger != nil {
			s.logger.Warn("report cache write failed", "key", key, "error", err)
		}
		return doc, nil
	})
	if err != nil {
		return err
	}
	return reassign(out, doc)
}

// reassign copies the built document into the caller's typed output.
func reassign(out, doc any) error {
	switch target := out.(type) {
	case *TrialBalance:
		v, ok := doc.(TrialBalance)
		if !ok {
			return fmt.Errorf("reports: unexpected document type %T", doc)
		}
		*target = v
	case *ProfitLoss:
		v, ok := doc.(ProfitLoss)
		if !ok {
			return fmt.Errorf("reports: unexpected document type %T", doc)
		}
		*target = v
	case *BalanceSheet:
		v, ok := doc.(BalanceSheet)
		if !ok {
			return fmt.Errorf("reports: unexpected document type %T", doc)
		}
		*target = v
	case *CashFlow:
		v, ok := doc.(CashFlow)
		if !ok {
			return fmt.Errorf("reports: unexpected document type %T", doc)
		}
		*target = v
	default:
		return fmt.Errorf("reports: unexpected output type %T", out)
	}
	return nil
}
