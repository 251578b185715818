// Package registry maps outbox event types to their Pub/Sub topic and the
// payload type the relay validates before publishing.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// MaxEnvelopeVersion is the newest envelope layout this build understands.
const MaxEnvelopeVersion = outbox.EnvelopeVersion

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(outbox.PayloadEnvelope) (any, error)
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that will never publish as stored.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func route[T any](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: eventType.Aggregate(),
		Topic:         topic,
		decode: func(env outbox.PayloadEnvelope) (any, error) {
			v := new(T)
			if err := env.Unpack(v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes order events to the orders topic and tenant
// events to the tenants topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []string
	if cfg.OrdersTopic == "" {
		missing = append(missing, "orders")
	}
	if cfg.TenantsTopic == "" {
		missing = append(missing, "tenants")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pubsub topics required: %v", missing)
	}

	reg := &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, cfg.OrdersTopic),
		route[payloads.OrderPaidEvent](enums.EventOrderPaid, cfg.OrdersTopic),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, cfg.OrdersTopic),
		route[payloads.TenantUpdatedEvent](enums.EventTenantUpdated, cfg.TenantsTopic),
	)
	return reg, nil
}

func (r *EventRegistry) add(descs ...EventDescriptor) {
	for _, d := range descs {
		r.routes[d.EventType] = d
	}
}

// Topics returns the distinct destination topics, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, d := range r.routes {
		if !slices.Contains(topics, d.Topic) {
			topics = append(topics, d.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is non-retryable: the stored bytes will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, errors.New("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	if envelope.Version > MaxEnvelopeVersion {
		return nil, fmt.Errorf("envelope version %d is newer than %d", envelope.Version, MaxEnvelopeVersion)
	}
	payload, err := desc.decode(envelope)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
