package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity sweeps every tenant's ledger for a nonzero global
	// debit/credit imbalance.
	TaskGLIntegrity = "gl:integrity"
	// TaskReorderScan flags inventory items at or below their reorder level.
	TaskReorderScan = "inventory:reorder"
	// TaskIdempotencyCleanup prunes idempotency keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// GLIntegrityPayload optionally narrows the sweep to one tenant.
type GLIntegrityPayload struct {
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
}

// NewGLIntegrityTask constructs the ledger integrity sweep task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data), nil
}

// NewReorderScanTask constructs the reorder-level scan task.
func NewReorderScanTask() *asynq.Task {
	return asynq.NewTask(TaskReorderScan, nil)
}

// NewIdempotencyCleanupTask constructs the key retention task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
