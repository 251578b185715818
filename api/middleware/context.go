package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/tenants"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type contextKey string

const (
	ctxTenant contextKey = "tenant"
	ctxAdmin  contextKey = "admin"
)

// WithTenant attaches the resolved tenant snapshot to the context.
func WithTenant(ctx context.Context, snapshot *tenants.Snapshot) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTenant, snapshot)
}

func TenantFromContext(ctx context.Context) *tenants.Snapshot {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxTenant).(*tenants.Snapshot); ok {
		return v
	}
	return nil
}

func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	snapshot := TenantFromContext(ctx)
	if snapshot == nil || snapshot.TenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return snapshot.TenantID, true
}

// WithAdmin attaches verified admin claims to the context.
func WithAdmin(ctx context.Context, claims *auth.AdminClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAdmin, claims)
}

func AdminFromContext(ctx context.Context) *auth.AdminClaims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxAdmin).(*auth.AdminClaims); ok {
		return v
	}
	return nil
}

func ActorIDFromContext(ctx context.Context) string {
	if claims := AdminFromContext(ctx); claims != nil {
		return claims.ActorID
	}
	return ""
}

// TenantID returns the resolved tenant or a not-found error for handlers
// mounted behind TenantContext.
func TenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := TenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found for this domain")
	}
	return id, nil
}
