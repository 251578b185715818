package tenants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type serviceFixture struct {
	conn     *gorm.DB
	svc      Service
	resolver *Resolver
	cache    *TTLCache
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	cache := NewTTLCache(time.Hour)
	svc, err := NewService(ServiceParams{
		Repository: repo,
		DB:         client,
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Cache:      cache,
	})
	require.NoError(t, err)
	resolver, err := NewResolver(repo, cache)
	require.NoError(t, err)
	return serviceFixture{conn: client.DB(), svc: svc, resolver: resolver, cache: cache}
}

func (f serviceFixture) activeTenant(t *testing.T, name, host string) *TenantDTO {
	t.Helper()
	ctx := context.Background()
	tenant, err := f.svc.Create(ctx, CreateTenantInput{Name: name})
	require.NoError(t, err)
	domain, err := f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: host})
	require.NoError(t, err)
	_, err = f.svc.VerifyDomain(ctx, tenant.ID, domain.ID)
	require.NoError(t, err)
	activated, err := f.svc.Activate(ctx, tenant.ID)
	require.NoError(t, err)
	return activated
}

func TestCreateGeneratesSlugAndDefaults(t *testing.T) {
	f := newServiceFixture(t)

	tenant, err := f.svc.Create(context.Background(), CreateTenantInput{Name: "Phone Repair Gent"})
	require.NoError(t, err)

	assert.Equal(t, "phone-repair-gent", tenant.Slug)
	assert.Equal(t, enums.TenantStatusDraft, tenant.Status)
	require.NotNil(t, tenant.Config)
	assert.Equal(t, "Phone Repair Gent", tenant.Config.DisplayName)
	assert.Equal(t, "EUR", tenant.Config.Currency)

	_, err = f.svc.Create(context.Background(), CreateTenantInput{Name: "Phone  Repair GENT"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "duplicate slug should conflict, got %v", err)

	var events int64
	f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventTenantUpdated).Count(&events)
	assert.Equal(t, int64(1), events)
}

func TestAddDomainNormalizesAndFirstBecomesPrimary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	tenant, err := f.svc.Create(ctx, CreateTenantInput{Name: "Shop"})
	require.NoError(t, err)

	first, err := f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: "WWW.Shop.Example.com:443"})
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", first.Hostname)
	assert.True(t, first.IsPrimary)
	assert.Equal(t, enums.DomainVerificationPending, first.VerificationStatus)

	second, err := f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: "shop.be", IsPrimary: true})
	require.NoError(t, err)
	assert.True(t, second.IsPrimary)

	primary, err := f.svc.GetPrimaryDomain(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "shop.be", primary)

	loaded, err := f.svc.Get(ctx, tenant.ID)
	require.NoError(t, err)
	primaries := 0
	for _, d := range loaded.Domains {
		if d.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries, "at most one primary domain per tenant")

	other, err := f.svc.Create(ctx, CreateTenantInput{Name: "Other"})
	require.NoError(t, err)
	_, err = f.svc.AddDomain(ctx, other.ID, AddDomainInput{Hostname: "shop.be"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "hostnames are globally unique, got %v", err)
}

func TestRemoveDomainGuards(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	tenant, err := f.svc.Create(ctx, CreateTenantInput{Name: "Shop"})
	require.NoError(t, err)
	primary, err := f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: "shop.example.com"})
	require.NoError(t, err)

	err = f.svc.RemoveDomain(ctx, tenant.ID, primary.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "last domain cannot be removed, got %v", err)

	alt, err := f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: "alt.example.com"})
	require.NoError(t, err)

	err = f.svc.RemoveDomain(ctx, tenant.ID, primary.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "primary cannot be removed, got %v", err)

	require.NoError(t, f.svc.RemoveDomain(ctx, tenant.ID, alt.ID))
	err = f.svc.RemoveDomain(ctx, tenant.ID, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestActivateRequiresVerifiedDomain(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	tenant, err := f.svc.Create(ctx, CreateTenantInput{Name: "Shop"})
	require.NoError(t, err)
	_, err = f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: "shop.example.com"})
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, tenant.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "expected conflict, got %v", err)
}

func TestSuspendIsVisibleToResolverImmediately(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	tenant := f.activeTenant(t, "Shop", "shop.example.com")

	snap, err := f.resolver.Resolve(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, snap.TenantID)
	assert.Equal(t, 1, f.cache.Len())

	suspended, err := f.svc.Suspend(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TenantStatusSuspended, suspended.Status)
	assert.NotNil(t, suspended.SuspendedAt)

	_, err = f.resolver.Resolve(ctx, "shop.example.com")
	assert.True(t, errors.Is(err, ErrTenantUnavailable), "expected unavailable after suspend, got %v", err)

	_, err = f.svc.Activate(ctx, tenant.ID)
	require.NoError(t, err)
	_, err = f.resolver.Resolve(ctx, "shop.example.com")
	assert.NoError(t, err)
}

func TestRemovedDomainStopsResolving(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	tenant := f.activeTenant(t, "Shop", "shop.example.com")
	alt, err := f.svc.AddDomain(ctx, tenant.ID, AddDomainInput{Hostname: "alt.example.com"})
	require.NoError(t, err)

	_, err = f.resolver.Resolve(ctx, "alt.example.com")
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveDomain(ctx, tenant.ID, alt.ID))
	_, err = f.resolver.Resolve(ctx, "alt.example.com")
	assert.True(t, errors.Is(err, ErrTenantNotConfigured), "expected not configured, got %v", err)
}

func TestUpdateConfigRefreshesBranding(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	tenant := f.activeTenant(t, "Shop", "shop.example.com")

	_, err := f.resolver.Resolve(ctx, "shop.example.com")
	require.NoError(t, err)

	name := "Shop Gent"
	color := "#112233"
	updated, err := f.svc.UpdateConfig(ctx, tenant.ID, UpdateConfigInput{
		DisplayName:   &name,
		PrimaryColor:  &color,
		BusinessHours: map[string]string{"mon": "09:00-18:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Shop Gent", updated.Config.DisplayName)
	assert.Equal(t, "EUR", updated.Config.Currency)

	snap, err := f.resolver.Resolve(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, "Shop Gent", snap.Branding.DisplayName)
	assert.Equal(t, "#112233", snap.Branding.PrimaryColor)
	assert.Equal(t, "09:00-18:00", snap.Branding.BusinessHours["mon"])
}

func TestListFiltersByStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.activeTenant(t, "Active Shop", "active.example.com")
	_, err := f.svc.Create(ctx, CreateTenantInput{Name: "Draft Shop"})
	require.NoError(t, err)

	active := enums.TenantStatusActive
	rows, err := f.svc.List(ctx, &active)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "active-shop", rows[0].Slug)

	all, err := f.svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bogus := enums.TenantStatus("BOGUS")
	_, err = f.svc.List(ctx, &bogus)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
