package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/vitabu-erp/vitabu/internal/ledger"
)

// TenantSource lists tenants for whole-fleet sweeps.
type TenantSource interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// GLIntegrityJob verifies the zero-sum invariant over every posted line. A
// tenant whose ledger does not net to zero is logged at error level; the
// job itself still succeeds so the remaining tenants get checked.
type GLIntegrityJob struct {
	calc    *ledger.Calculator
	tenants TenantSource
	logger  *slog.Logger
}

func NewGLIntegrityJob(calc *ledger.Calculator, tenants TenantSource, logger *slog.Logger) *GLIntegrityJob {
	return &GLIntegrityJob{calc: calc, tenants: tenants, logger: logger}
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}
	var ids []uuid.UUID
	if payload.TenantID != nil {
		ids = []uuid.UUID{*payload.TenantID}
	} else {
		var err error
		ids, err = j.tenants.ListTenantIDs(ctx)
		if err != nil {
			return err
		}
	}
	for _, id := range ids {
		imbalance, err := j.calc.GlobalImbalance(ctx, id)
		if err != nil {
			return fmt.Errorf("jobs: integrity check tenant %s: %w", id, err)
		}
		if !imbalance.IsZero() {
			j.logger.Error("ledger does not net to zero",
				slog.String("tenant", id.String()),
				slog.String("imbalance", imbalance.String()))
			continue
		}
		j.logger.Debug("ledger integrity verified", slog.String("tenant", id.String()))
	}
	return nil
}
