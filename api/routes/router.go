package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v84"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	tenantcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/tenants"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/tenants"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Routes served without a resolved storefront.
var platformPrefixes = []string{
	"/health",
	"/metrics",
	"/api/v1/webhooks",
	"/api/v1/checkout/resolve-session",
	"/api/platform",
}

type tenantResolver interface {
	Resolve(ctx context.Context, rawHost string) (*tenants.Snapshot, error)
}

type tokenRevocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type webhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

type webhookGuard interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Dependencies collects everything the HTTP surface needs. Nil services
// answer 500 from their handlers; nil infrastructure disables the middleware
// that relies on it.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	Readiness   map[string]controllers.Pinger
	Metrics     prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Redis       redisStore
	Revocations tokenRevocations

	Resolver  tenantResolver
	Tenants   tenants.Service
	Orders    orders.Service
	Checkout  checkoutsvc.Service
	Discounts discounts.Service

	Verifier     webhookVerifier
	Webhooks     webhookcontrollers.StripeWebhookService
	WebhookGuard webhookGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
		middleware.TenantContext(deps.Resolver, logg, platformPrefixes...),
	)

	gatherer := deps.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	checkoutReplay := middleware.Idempotency(deps.Redis, logg, middleware.CheckoutIdempotency)
	adminReplay := middleware.Idempotency(deps.Redis, logg, middleware.AdminIdempotency)
	platformReplay := middleware.Idempotency(deps.Redis, logg, middleware.PlatformIdempotency)
	checkoutLimit := middleware.RateLimit(middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	), deps.Redis, logg)
	trackLimit := middleware.RateLimit(middleware.NewRateLimitPolicy(
		"track",
		cfg.RateLimit.TrackWindow,
		cfg.RateLimit.TrackIPLimit,
		0,
	), deps.Redis, logg)
	adminAuth := middleware.AdminAuth(cfg.JWT, deps.Revocations, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Readiness, logg))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.Webhooks, deps.Verifier, deps.WebhookGuard, logg))
	r.Get("/api/v1/checkout/resolve-session/{sessionId}", controllers.ResolveCheckoutSession(deps.Orders, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireTenant(logg))
		r.With(checkoutLimit, checkoutReplay).Post("/api/v1/checkout", controllers.CreateCheckout(deps.Checkout, logg))
		r.Get("/api/v1/checkout/session/{sessionId}", controllers.CheckoutSession(deps.Orders, logg))
		r.With(trackLimit).Get("/api/v1/orders/track/{orderNumber}", ordercontrollers.Track(deps.Orders, logg))
		r.With(checkoutLimit).Post("/api/v1/discounts/validate", controllers.ValidateDiscount(deps.Discounts, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireTenant(logg))
		r.Use(adminAuth)
		r.Use(middleware.RequireTenantAdmin(logg))

		r.Post("/auth/logout", controllers.Logout(deps.Revocations, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/by-email", ordercontrollers.ByEmail(deps.Orders, logg))
			r.With(adminReplay).Patch("/bulk-status", ordercontrollers.BulkStatus(deps.Orders, logg))
			r.Post("/labels", ordercontrollers.Labels(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(adminReplay).Patch("/{orderId}", ordercontrollers.Update(deps.Orders, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(deps.Orders, logg))
		})
	})

	r.Route("/api/platform/v1", func(r chi.Router) {
		r.Use(adminAuth)
		r.Use(middleware.RequirePlatformAdmin(logg))

		r.Post("/auth/logout", controllers.Logout(deps.Revocations, logg))
		r.Route("/tenants", func(r chi.Router) {
			r.With(platformReplay).Post("/", tenantcontrollers.Create(deps.Tenants, logg))
			r.Get("/", tenantcontrollers.List(deps.Tenants, logg))
			r.Route("/{tenantId}", func(r chi.Router) {
				r.Get("/", tenantcontrollers.Get(deps.Tenants, logg))
				r.Put("/config", tenantcontrollers.UpdateConfig(deps.Tenants, logg))
				r.Post("/activate", tenantcontrollers.Activate(deps.Tenants, logg))
				r.Post("/suspend", tenantcontrollers.Suspend(deps.Tenants, logg))
				r.Post("/archive", tenantcontrollers.Archive(deps.Tenants, logg))
				r.With(platformReplay).Post("/domains", tenantcontrollers.AddDomain(deps.Tenants, logg))
				r.Delete("/domains/{domainId}", tenantcontrollers.RemoveDomain(deps.Tenants, logg))
				r.Post("/domains/{domainId}/primary", tenantcontrollers.SetPrimaryDomain(deps.Tenants, logg))
				r.Post("/domains/{domainId}/verify", tenantcontrollers.VerifyDomain(deps.Tenants, logg))
			})
		})
	})

	return r
}
