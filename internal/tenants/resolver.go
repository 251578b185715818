package tenants

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type generationCache interface {
	Generation() uint64
	SetIfGeneration(host string, snap Snapshot, gen uint64) bool
}

type tenantLookup interface {
	FindByHostname(ctx context.Context, host string) (*models.Tenant, error)
}

// Resolver maps an inbound hostname to an ACTIVE tenant.
type Resolver struct {
	repo  tenantLookup
	cache Cache
	group singleflight.Group
}

// NewResolver wires the directory lookup behind the cache.
func NewResolver(repo tenantLookup, cache Cache) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if cache == nil {
		cache = NewTTLCache(DefaultCacheTTL)
	}
	return &Resolver{repo: repo, cache: cache}, nil
}

// Cache exposes the cache so admin mutations can invalidate it.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// Resolve returns the tenant owning rawHost. Cache hits never touch the directory.
func (r *Resolver) Resolve(ctx context.Context, rawHost string) (*Snapshot, error) {
	host, err := NormalizeHost(rawHost)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid host header")
	}
	if snap, ok := r.cache.Get(host); ok {
		return &snap, nil
	}

	// Callers share one lookup, so it must outlive any single request.
	v, err, _ := r.group.Do(host, func() (any, error) {
		return r.lookup(context.WithoutCancel(ctx), host)
	})
	if err != nil {
		return nil, err
	}
	snap := v.(Snapshot)
	return &snap, nil
}

func (r *Resolver) lookup(ctx context.Context, host string) (Snapshot, error) {
	versioned, hasGen := r.cache.(generationCache)
	var gen uint64
	if hasGen {
		gen = versioned.Generation()
	}
	tenant, err := r.repo.FindByHostname(ctx, host)
	if err != nil {
		if isNotFound(err) {
			return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrTenantNotConfigured, "store not found for this domain")
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve tenant")
	}
	if tenant.Status != enums.TenantStatusActive {
		return Snapshot{}, unavailableError(tenant.Status)
	}
	snap := newSnapshot(host, tenant)
	if hasGen {
		versioned.SetIfGeneration(host, snap, gen)
	} else {
		r.cache.Set(host, snap)
	}
	return snap, nil
}

func unavailableError(status enums.TenantStatus) error {
	code := "TENANT_UNAVAILABLE"
	message := "store is currently unavailable"
	if status == enums.TenantStatusSuspended {
		code = "TENANT_SUSPENDED"
		message = "store is temporarily suspended"
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, ErrTenantUnavailable, message).
		WithDetails(map[string]any{
			"code":   code,
			"status": string(status),
		})
}
