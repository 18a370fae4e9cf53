package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores assembled report documents in Redis. Keys carry a per-tenant
// epoch counter; bumping the epoch on every posting orphans all cached
// documents for that tenant at once, so a report is never served across a
// ledger change.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) epoch(ctx context.Context, tenantID uuid.UUID) int64 {
	n, err := c.client.Get(ctx, "reports:epoch:"+tenantID.String()).Int64()
	if err != nil {
		return 0
	}
	return n
}

// Invalidate bumps the tenant's epoch. Redis being unreachable degrades the
// cache to a miss on the next read, so the error is only logged by callers
// that care.
func (c *Cache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return c.client.Incr(ctx, "reports:epoch:"+tenantID.String()).Err()
}

// Key builds the cache key for one report variant under the current epoch.
func (c *Cache) Key(ctx context.Context, tenantID uuid.UUID, report, variant string) string {
	return fmt.Sprintf("reports:%s:%d:%s:%s", tenantID, c.epoch(ctx, tenantID), report, variant)
}

// Get unmarshals a cached document into out. A miss returns false with no
// error.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
