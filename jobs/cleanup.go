package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// KeyStore prunes idempotency keys past their retention window.
type KeyStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob removes keys older than the retention window.
// Replays of a document that old collide with the unique journal source
// constraint instead.
type IdempotencyCleanupJob struct {
	store     KeyStore
	retention time.Duration
	logger    *slog.Logger
}

func NewIdempotencyCleanupJob(store KeyStore, retention time.Duration, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, retention: retention, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	removed, err := j.store.Cleanup(ctx, j.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.logger.Info("idempotency keys pruned", slog.Int64("removed", removed))
	}
	return nil
}
