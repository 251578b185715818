package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/tenants"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/invoice"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	registerer := prometheus.DefaultRegisterer

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe client", err)
	gateway, err := stripe.NewGateway(stripeClient, cfg.Stripe)
	requireResource(ctx, logg, "stripe gateway", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	tenantRepo := tenants.NewRepository(dbClient.DB())
	tenantCache := tenants.NewTTLCache(cfg.Tenancy.CacheTTL, tenants.WithCacheMetrics(metrics.NewTenantCacheMetrics(registerer)))
	resolver, err := tenants.NewResolver(tenantRepo, tenantCache)
	requireResource(ctx, logg, "tenant resolver", err)
	tenantService, err := tenants.NewService(tenants.ServiceParams{
		Repository: tenantRepo,
		DB:         dbClient,
		Outbox:     outboxService,
		Cache:      tenantCache,
		Logger:     logg,
	})
	requireResource(ctx, logg, "tenant service", err)

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Workers:     cfg.SideEffects.Workers,
		QueueSize:   cfg.SideEffects.QueueSize,
		TaskTimeout: cfg.SideEffects.TaskTimeout,
		Logger:      logg,
		Metrics:     metrics.NewSideEffectMetrics(registerer),
	})
	requireResource(ctx, logg, "side effect dispatcher", err)

	var sender mailer.Sender = mailer.NewLogSender(logg)
	if cfg.Mail.Enabled() {
		smtpSender, err := mailer.NewSMTP(cfg.Mail)
		requireResource(ctx, logg, "smtp sender", err)
		sender = smtpSender
	}
	emailMailer, err := notifications.NewEmailMailer(sender)
	requireResource(ctx, logg, "email mailer", err)

	vatRate, err := cfg.Checkout.VATRate()
	requireResource(ctx, logg, "vat rate", err)
	orderRepo := orders.NewRepository(dbClient.DB())
	invoices, err := notifications.NewPDFInvoices(notifications.PDFInvoicesParams{
		Orders:  orderRepo,
		Tenants: tenantRepo,
		Issuer: invoice.Issuer{
			Name:    cfg.Invoice.IssuerName,
			Address: cfg.Invoice.IssuerAddress,
			VATID:   cfg.Invoice.IssuerVATID,
			Email:   cfg.Mail.From,
		},
		VATRate: vatRate,
	})
	requireResource(ctx, logg, "invoice generator", err)

	notifier, err := notifications.NewService(notifications.ServiceParams{
		Dispatcher: dispatcher,
		Mailer:     emailMailer,
		Invoices:   invoices,
		Tenants:    tenantRepo,
		Logger:     logg,
	})
	requireResource(ctx, logg, "notifier", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repository: orderRepo,
		DB:         dbClient,
		Outbox:     outboxService,
		Notifier:   notifier,
		Domains:    tenantService,
		Logger:     logg,
	})
	requireResource(ctx, logg, "order service", err)

	discountService, err := discounts.NewService(discounts.NewRepository(dbClient.DB()), nil)
	requireResource(ctx, logg, "discount service", err)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		DB:          dbClient,
		Orders:      orderRepo,
		Catalog:     catalogRepo,
		Discounts:   discountService,
		Gateway:     gateway,
		Outbox:      outboxService,
		Domains:     tenantService,
		Checkout:    cfg.Checkout,
		PlatformURL: cfg.Tenancy.PlatformURL,
		Currency:    cfg.Stripe.Currency,
		Metrics:     metrics.NewCheckoutMetrics(registerer),
		Logger:      logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:    orderRepo,
		Catalog:   catalogRepo,
		Discounts: discountService,
		Notifier:  notifier,
		Outbox:    outboxService,
		DB:        dbClient,
		Metrics:   metrics.NewSettlementMetrics(registerer),
		Logger:    logg,
	})
	requireResource(ctx, logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewEventGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, stripewebhook.DefaultGuardScope)
	requireResource(ctx, logg, "stripe webhook guard", err)

	revocations, err := auth.NewRevocations(redisClient)
	requireResource(ctx, logg, "token revocations", err)

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	var invalidations *tenants.InvalidationConsumer
	if cfg.GCP.ProjectID != "" && cfg.PubSub.TenantsSubscription != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub client", err)
			}
		}()
		readiness["pubsub"] = pubsubClient

		invalidations, err = tenants.NewInvalidationConsumer(tenantCache, pubsubClient.TenantsSubscription(), redisClient, cfg.Eventing.ConsumerIdempotencyTTL, logg)
		requireResource(ctx, logg, "tenant invalidation consumer", err)
	} else {
		logg.Warn(ctx, "tenant invalidation consumer disabled: pubsub not configured")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:       cfg,
			Logger:       logg,
			Readiness:    readiness,
			Metrics:      prometheus.DefaultGatherer,
			HTTPMetrics:  metrics.NewHTTPMetrics(registerer),
			Redis:        redisClient,
			Revocations:  revocations,
			Resolver:     resolver,
			Tenants:      tenantService,
			Orders:       orderService,
			Checkout:     checkoutService,
			Discounts:    discountService,
			Verifier:     gateway,
			Webhooks:     webhookService,
			WebhookGuard: webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
		"stripe_mode": string(stripeClient.Mode()),
	})
	logg.Info(runCtx, "starting api server")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	if invalidations != nil {
		group.Go(func() error {
			if err := invalidations.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("tenant invalidation consumer: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(
			server.Shutdown(shutdownCtx),
			dispatcher.Close(shutdownCtx),
		)
	})

	if err := group.Wait(); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server shut down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
