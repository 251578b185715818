package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/tenants"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const storeHost = "bakkerij.example.com"

var storeTenant = uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type countingResolver struct {
	mu    sync.Mutex
	calls int
}

func (r *countingResolver) Resolve(_ context.Context, host string) (*tenants.Snapshot, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if host != storeHost {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, tenants.ErrTenantNotConfigured, "store not found for this domain")
	}
	return &tenants.Snapshot{TenantID: storeTenant, Hostname: storeHost, Status: enums.TenantStatusActive}, nil
}

func (r *countingResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

type memoryRevocations struct {
	revoked map[string]bool
}

func (m *memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return m.revoked[id], nil
}

func (m *memoryRevocations) Revoke(_ context.Context, id string, _ time.Time) error {
	m.revoked[id] = true
	return nil
}

type stubCheckout struct {
	calls int
}

func (s *stubCheckout) CreateCheckout(_ context.Context, tenantID uuid.UUID, _ checkout.CreateCheckoutInput) (*checkout.Result, error) {
	s.calls++
	return &checkout.Result{CheckoutURL: "https://pay.example/cs_1", SessionID: "cs_1", OrderID: uuid.New(), OrderNumber: "ND-1"}, nil
}

type stubOrders struct {
	orders.Service
	listTenant uuid.UUID
}

func (s *stubOrders) List(_ context.Context, tenantID uuid.UUID, _ pagination.Params, _ orders.ListFilters) (*orders.OrderListDTO, error) {
	s.listTenant = tenantID
	return &orders.OrderListDTO{Orders: []orders.OrderDTO{}}, nil
}

type stubTenants struct {
	tenants.Service
	listed bool
}

func (s *stubTenants) List(context.Context, *enums.TenantStatus) ([]tenants.TenantDTO, error) {
	s.listed = true
	return []tenants.TenantDTO{}, nil
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifyWebhook([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("bad signature")
}

type stubWebhooks struct{}

func (stubWebhooks) HandleEvent(context.Context, *stripe.Event) (stripewebhook.Outcome, error) {
	return stripewebhook.OutcomeIgnored, nil
}

type harness struct {
	handler     http.Handler
	resolver    *countingResolver
	checkout    *stubCheckout
	orders      *stubOrders
	tenants     *stubTenants
	revocations *memoryRevocations
	cfg         *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSAllowedOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15},
		RateLimit: config.RateLimitConfig{
			CheckoutWindow:     time.Minute,
			CheckoutIPLimit:    100,
			CheckoutEmailLimit: 100,
			TrackWindow:        time.Minute,
			TrackIPLimit:       100,
		},
	}
	h := &harness{
		resolver:    &countingResolver{},
		checkout:    &stubCheckout{},
		orders:      &stubOrders{},
		tenants:     &stubTenants{},
		revocations: &memoryRevocations{revoked: map[string]bool{}},
		cfg:         cfg,
	}
	h.handler = NewRouter(Dependencies{
		Config:      cfg,
		Readiness:   map[string]controllers.Pinger{"postgres": stubPinger{}},
		Metrics:     prometheus.NewRegistry(),
		Redis:       newMemoryRedis(),
		Revocations: h.revocations,
		Resolver:    h.resolver,
		Tenants:     h.tenants,
		Orders:      h.orders,
		Checkout:    h.checkout,
		Verifier:    rejectingVerifier{},
		Webhooks:    stubWebhooks{},
	})
	return h
}

func (h *harness) token(t *testing.T, role enums.AdminRole, tenantID *uuid.UUID, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAdminToken(h.cfg.JWT, time.Now(), pkgAuth.AdminTokenPayload{
		ActorID:  "actor-1",
		Name:     "Actor",
		Role:     role,
		TenantID: tenantID,
		JTI:      jti,
	})
	require.NoError(t, err)
	return token
}

func (h *harness) do(method, host, path, body, token string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Host = host
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestPlatformRoutesSkipTenantResolution(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "unknown.example.com", "/health/live", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "unknown.example.com", "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "unknown.example.com", "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "unknown.example.com", "/api/v1/webhooks/stripe", `{}`, "", map[string]string{"Stripe-Signature": "t=1,v1=bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, h.resolver.count())
}

func TestUnknownHostOnStorefrontRoute(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "unknown.example.com", "/api/v1/orders/track/ND-1", "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "store not found for this domain")
}

func TestCheckoutReplaysWithIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	body := `{"items":[{"productId":"8a1d7f7e-9a53-4c1b-9a57-6f0e8a1f2b3c","quantity":1}],"customerEmail":"jan@example.com","customerName":"Jan"}`
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := h.do(http.MethodPost, storeHost, "/api/v1/checkout", body, "", headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := h.do(http.MethodPost, storeHost, "/api/v1/checkout", body, "", headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, h.checkout.calls)

	// without a key each request reaches the saga
	h.do(http.MethodPost, storeHost, "/api/v1/checkout", body, "", nil)
	assert.Equal(t, 2, h.checkout.calls)
}

func TestAdminRoutesAreTenantScoped(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, storeHost, "/api/admin/v1/orders", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := uuid.New()
	rec = h.do(http.MethodGet, storeHost, "/api/admin/v1/orders", "", h.token(t, enums.AdminRoleOwner, &other, "jti-other"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tenantID := storeTenant
	rec = h.do(http.MethodGet, storeHost, "/api/admin/v1/orders", "", h.token(t, enums.AdminRoleOwner, &tenantID, "jti-owner"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, storeTenant, h.orders.listTenant)

	rec = h.do(http.MethodGet, storeHost, "/api/admin/v1/orders", "", h.token(t, enums.AdminRolePlatform, nil, "jti-platform"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	tenantID := storeTenant
	token := h.token(t, enums.AdminRoleOwner, &tenantID, "jti-logout")

	rec := h.do(http.MethodPost, storeHost, "/api/admin/v1/auth/logout", "", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, h.revocations.revoked["jti-logout"])

	rec = h.do(http.MethodGet, storeHost, "/api/admin/v1/orders", "", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlatformTenantRoutesRequirePlatformRole(t *testing.T) {
	h := newHarness(t)
	tenantID := storeTenant

	rec := h.do(http.MethodGet, "admin.example.com", "/api/platform/v1/tenants", "", h.token(t, enums.AdminRoleOwner, &tenantID, "jti-owner"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "admin.example.com", "/api/platform/v1/tenants", "", h.token(t, enums.AdminRolePlatform, nil, "jti-platform"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, h.tenants.listed)

	rec = h.do(http.MethodPost, "admin.example.com", "/api/platform/v1/tenants", `{"name":"Bakkerij","slug":"bakkerij"}`, h.token(t, enums.AdminRolePlatform, nil, "jti-platform-2"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "tenant creation requires an Idempotency-Key")

	assert.Zero(t, h.resolver.count())
}
