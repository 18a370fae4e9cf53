package shared

import (
	"context"

	"github.com/google/uuid"
)

type tenantContextKey struct{}

// ContextWithTenant stores the acting tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the tenant id from context.
// The zero UUID means no tenant was attached.
func TenantFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(tenantContextKey{}).(uuid.UUID)
	return id
}
