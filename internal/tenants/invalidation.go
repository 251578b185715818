package tenants

import (
	"context"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type messageSource interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type processedGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// InvalidationConsumer evicts locally cached tenants when another instance
// publishes a tenant_updated event.
type InvalidationConsumer struct {
	name         string
	cache        Cache
	subscription messageSource
	guard        processedGuard
	logg         *logger.Logger
}

// NewInvalidationConsumer builds the consumer. Each API instance needs its
// own subscription so every cache sees every event; processed event ids are
// kept per instance for ttl.
func NewInvalidationConsumer(cache Cache, subscription *pubsub.Subscriber, store idempotency.Store, ttl time.Duration, logg *logger.Logger) (*InvalidationConsumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("tenants subscription required")
	}
	ledger, err := idempotency.NewLedger(store, idempotency.ConsumerScope(invalidationConsumerName()), ttl)
	if err != nil {
		return nil, fmt.Errorf("invalidation ledger: %w", err)
	}
	return newInvalidationConsumer(cache, subscription, ledger, logg)
}

func invalidationConsumerName() string {
	return "tenant-cache-" + instance.GetID()
}

func newInvalidationConsumer(cache Cache, source messageSource, guard processedGuard, logg *logger.Logger) (*InvalidationConsumer, error) {
	if cache == nil {
		return nil, fmt.Errorf("tenant cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &InvalidationConsumer{
		name:         invalidationConsumerName(),
		cache:        cache,
		subscription: source,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run receives until ctx is canceled.
func (c *InvalidationConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		c.process(ctx, msg.ID, msg.Attributes, msg.Data)
		msg.Ack()
	})
}

// process never asks for redelivery: a lost eviction only extends staleness
// up to the cache TTL.
func (c *InvalidationConsumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventTenantUpdated) {
		return
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return
	}
	var payload payloads.TenantUpdatedEvent
	if err := envelope.Unpack(&payload); err != nil {
		c.logg.Error(logCtx, "failed to parse tenant payload", err)
		return
	}

	already, err := c.guard.Seen(ctx, envelope.EventID)
	if err != nil {
		c.logg.Warn(logCtx, "idempotency check failed")
	} else if already {
		return
	}

	c.cache.Invalidate(payload.Hostnames...)
	c.cache.InvalidateTenant(payload.TenantID)
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"tenant_id": payload.TenantID.String(),
		"change":    payload.Change,
	}), "tenant cache invalidated from event")
}
