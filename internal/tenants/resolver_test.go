package tenants

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubLookup struct {
	calls  atomic.Int32
	tenant *models.Tenant
	err    error

	// entered and release, when set, hold the lookup until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (s *stubLookup) FindByHostname(ctx context.Context, host string) (*models.Tenant, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.tenant
	return &copied, nil
}

func activeTenant() *models.Tenant {
	id := uuid.New()
	logo := "https://cdn.example.com/logo.png"
	return &models.Tenant{
		ID:     id,
		Name:   "Phone Repair Gent",
		Slug:   "phone-repair-gent",
		Status: enums.TenantStatusActive,
		Domains: []models.TenantDomain{
			{TenantID: id, Hostname: "shop.example.com", IsPrimary: true},
			{TenantID: id, Hostname: "alt.example.com"},
		},
		Config: &models.TenantConfig{TenantID: id, DisplayName: "PRG", LogoURL: &logo, Locale: "nl-BE", Currency: "EUR"},
	}
}

func TestResolveCachesActiveTenant(t *testing.T) {
	repo := &stubLookup{tenant: activeTenant()}
	resolver, err := NewResolver(repo, NewTTLCache(time.Minute))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	first, err := resolver.Resolve(context.Background(), "WWW.alt.example.com:443")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.TenantID != repo.tenant.ID || first.Hostname != "alt.example.com" {
		t.Fatalf("unexpected snapshot %+v", first)
	}
	if first.PrimaryDomain != "shop.example.com" || first.Branding.DisplayName != "PRG" {
		t.Fatalf("snapshot should carry primary domain and branding, got %+v", first)
	}

	if _, err := resolver.Resolve(context.Background(), "alt.example.com"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if got := repo.calls.Load(); got != 1 {
		t.Fatalf("cache hit must not query the directory, got %d lookups", got)
	}
}

func TestResolveSharedLookupOutlivesCancelledCaller(t *testing.T) {
	repo := &stubLookup{
		tenant:  activeTenant(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	resolver, err := NewResolver(repo, NewTTLCache(time.Minute))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(ctx, "shop.example.com")
		done <- err
	}()
	<-repo.entered
	cancel()
	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("shared lookup must not inherit the caller's cancellation: %v", err)
	}

	repo.entered = nil
	if _, err := resolver.Resolve(context.Background(), "shop.example.com"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if got := repo.calls.Load(); got != 1 {
		t.Fatalf("expected the completed lookup to be cached, got %d lookups", got)
	}
}

func TestResolveUnknownHost(t *testing.T) {
	resolver, _ := NewResolver(&stubLookup{err: gorm.ErrRecordNotFound}, nil)

	_, err := resolver.Resolve(context.Background(), "unknown.example.com")
	if !errors.Is(err, ErrTenantNotConfigured) {
		t.Fatalf("expected ErrTenantNotConfigured, got %v", err)
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestResolveInvalidHost(t *testing.T) {
	repo := &stubLookup{tenant: activeTenant()}
	resolver, _ := NewResolver(repo, nil)

	_, err := resolver.Resolve(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidHost) || !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected invalid host validation error, got %v", err)
	}
	if repo.calls.Load() != 0 {
		t.Fatalf("invalid hosts must not reach the directory")
	}
}

func TestResolveSuspendedTenantIsUnavailableAndNotCached(t *testing.T) {
	tenant := activeTenant()
	tenant.Status = enums.TenantStatusSuspended
	repo := &stubLookup{tenant: tenant}
	cache := NewTTLCache(time.Minute)
	resolver, _ := NewResolver(repo, cache)

	_, err := resolver.Resolve(context.Background(), "shop.example.com")
	if !errors.Is(err, ErrTenantUnavailable) {
		t.Fatalf("expected ErrTenantUnavailable, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["code"] != "TENANT_SUSPENDED" || details["status"] != "SUSPENDED" {
		t.Fatalf("unexpected details %+v", typed.Details())
	}
	if cache.Len() != 0 {
		t.Fatalf("unavailable tenants must not be cached")
	}
}

func TestResolveDraftTenantReportsGenericUnavailable(t *testing.T) {
	tenant := activeTenant()
	tenant.Status = enums.TenantStatusDraft
	resolver, _ := NewResolver(&stubLookup{tenant: tenant}, nil)

	_, err := resolver.Resolve(context.Background(), "shop.example.com")
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	if details := typed.Details().(map[string]any); details["code"] != "TENANT_UNAVAILABLE" {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestResolveReflectsInvalidation(t *testing.T) {
	repo := &stubLookup{tenant: activeTenant()}
	resolver, _ := NewResolver(repo, NewTTLCache(time.Hour))

	if _, err := resolver.Resolve(context.Background(), "shop.example.com"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	suspended := *repo.tenant
	suspended.Status = enums.TenantStatusSuspended
	repo.tenant = &suspended
	resolver.Cache().InvalidateTenant(suspended.ID)

	if _, err := resolver.Resolve(context.Background(), "shop.example.com"); !errors.Is(err, ErrTenantUnavailable) {
		t.Fatalf("expected suspension to be visible right after invalidation, got %v", err)
	}
}

func TestResolveDirectoryFailureIsInternal(t *testing.T) {
	resolver, _ := NewResolver(&stubLookup{err: errors.New("connection reset")}, nil)
	_, err := resolver.Resolve(context.Background(), "shop.example.com")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
