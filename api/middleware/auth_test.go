package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/tenants"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return s.revoked[id], s.err
}

func mintToken(t *testing.T, role enums.AdminRole, tenantID *uuid.UUID, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAdminToken(testJWT, time.Now(), pkgAuth.AdminTokenPayload{
		ActorID:  "actor-1",
		Name:     "Actor One",
		Role:     role,
		TenantID: tenantID,
		JTI:      jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAdminAuthSeedsClaims(t *testing.T) {
	tenantID := uuid.New()
	var captured *pkgAuth.AdminClaims
	handler := AdminAuth(testJWT, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.AdminRoleOwner, &tenantID, ""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if captured == nil || captured.ActorID != "actor-1" || captured.Role != enums.AdminRoleOwner {
		t.Fatalf("unexpected claims %+v", captured)
	}
	if captured.TenantID == nil || *captured.TenantID != tenantID {
		t.Fatalf("tenant id not propagated")
	}
}

func TestAdminAuthRejects(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	cases := []struct {
		name        string
		header      string
		revocations pkgAuth.RevocationChecker
		want        int
	}{
		{"missing header", "", nil, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", nil, http.StatusUnauthorized},
		{"revoked", "Bearer " + mintToken(t, enums.AdminRolePlatform, nil, "jti-1"), stubRevocations{revoked: map[string]bool{"jti-1": true}}, http.StatusUnauthorized},
		{"revocation store down", "Bearer " + mintToken(t, enums.AdminRolePlatform, nil, "jti-2"), stubRevocations{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/platform/v1/tenants", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		AdminAuth(testJWT, tc.revocations, nil)(next).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestRequireTenantAdmin(t *testing.T) {
	tenantID := uuid.New()
	other := uuid.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name   string
		claims *pkgAuth.AdminClaims
		tenant *tenants.Snapshot
		want   int
	}{
		{"owner of tenant", &pkgAuth.AdminClaims{Role: enums.AdminRoleOwner, TenantID: &tenantID}, &tenants.Snapshot{TenantID: tenantID}, http.StatusOK},
		{"owner of other tenant", &pkgAuth.AdminClaims{Role: enums.AdminRoleOwner, TenantID: &other}, &tenants.Snapshot{TenantID: tenantID}, http.StatusForbidden},
		{"platform", &pkgAuth.AdminClaims{Role: enums.AdminRolePlatform}, &tenants.Snapshot{TenantID: tenantID}, http.StatusOK},
		{"no tenant", &pkgAuth.AdminClaims{Role: enums.AdminRolePlatform}, nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
		ctx := WithAdmin(req.Context(), tc.claims)
		if tc.tenant != nil {
			ctx = WithTenant(ctx, tc.tenant)
		}
		rec := httptest.NewRecorder()
		RequireTenantAdmin(nil)(ok).ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestRequirePlatformAdmin(t *testing.T) {
	tenantID := uuid.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	owner := httptest.NewRequest(http.MethodGet, "/api/platform/v1/tenants", nil)
	owner = owner.WithContext(WithAdmin(owner.Context(), &pkgAuth.AdminClaims{Role: enums.AdminRoleOwner, TenantID: &tenantID}))
	rec := httptest.NewRecorder()
	RequirePlatformAdmin(nil)(ok).ServeHTTP(rec, owner)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected owner to be forbidden, got %d", rec.Code)
	}

	platform := httptest.NewRequest(http.MethodGet, "/api/platform/v1/tenants", nil)
	platform = platform.WithContext(WithAdmin(platform.Context(), &pkgAuth.AdminClaims{Role: enums.AdminRolePlatform}))
	rec = httptest.NewRecorder()
	RequirePlatformAdmin(nil)(ok).ServeHTTP(rec, platform)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected platform admin to pass, got %d", rec.Code)
	}
}
