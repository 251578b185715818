package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type disposition int

const (
	dispositionPublished disposition = iota
	dispositionRetry
	dispositionDeadLetter
)

// inflight tracks one outbox row through a batch: staged, awaited, settled.
type inflight struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
	outcome  disposition
	reason   enums.OutboxDLQErrorReason
}

func (f *inflight) topic() string {
	if f.resolved == nil {
		return ""
	}
	return f.resolved.Descriptor.Topic
}

func (f *inflight) tenantID() string {
	if f.resolved == nil {
		return ""
	}
	return f.resolved.Envelope.TenantID
}

// drainOnce claims a batch of rows, publishes them and records each outcome
// in the same transaction that holds the row locks.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	started := r.now()
	var count int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.Claim(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		count = len(events)
		if count == 0 {
			return nil
		}

		batch := make([]*inflight, 0, len(events))
		for _, event := range events {
			batch = append(batch, r.stage(ctx, event))
		}

		waitCtx, cancel := context.WithTimeout(ctx, batchPublishWait)
		defer cancel()
		for _, f := range batch {
			r.await(waitCtx, f)
		}

		for _, f := range batch {
			if err := r.settle(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if count > 0 {
		r.metrics.ObserveBatch(r.now().Sub(started))
	}
	return count, err
}

// stage resolves the row and hands it to the topic publisher without waiting.
func (r *Relay) stage(ctx context.Context, event models.OutboxEvent) *inflight {
	f := &inflight{event: event}
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		f.err = err
		return f
	}
	f.resolved = resolved

	pub := r.publisherFor(resolved.Descriptor.Topic)
	if pub == nil {
		f.err = registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", resolved.Descriptor.Topic))
		return f
	}
	f.result = pub.Publish(ctx, buildMessage(event, resolved))
	if f.result == nil {
		f.err = registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", resolved.Descriptor.Topic))
	}
	return f
}

func (r *Relay) await(ctx context.Context, f *inflight) {
	if f.err == nil && f.result != nil {
		_, f.err = f.result.Get(ctx)
	}

	var nonRetry registry.NonRetryableError
	switch {
	case f.err == nil:
		f.outcome = dispositionPublished
	case errors.As(f.err, &nonRetry):
		f.outcome = dispositionDeadLetter
		f.reason = enums.OutboxDLQReasonNonRetryable
	case f.event.AttemptCount+1 >= r.maxAttempts:
		f.outcome = dispositionDeadLetter
		f.reason = enums.OutboxDLQReasonMaxAttempts
		f.err = fmt.Errorf("max publish attempts reached: %w", f.err)
	default:
		f.outcome = dispositionRetry
	}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, f *inflight) error {
	ctx = r.logg.WithFields(ctx, r.logFields(f))
	eventType := string(f.event.EventType)

	switch f.outcome {
	case dispositionPublished:
		if err := r.repo.MarkPublished(tx, f.event.ID, r.now()); err != nil {
			return fmt.Errorf("mark published %s: %w", f.event.ID, err)
		}
		r.metrics.IncPublished(eventType, f.event.CreatedAt)
		r.logg.Info(ctx, "outbox event published")

	case dispositionRetry:
		r.metrics.IncFailed(eventType)
		r.logg.Warn(r.logg.WithField(ctx, "error", f.err.Error()), "outbox publish failed, will retry")
		if err := r.repo.RecordFailure(tx, f.event.ID, f.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", f.event.ID, err)
		}

	case dispositionDeadLetter:
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"error":        f.err.Error(),
			"error_reason": f.reason,
		}), "outbox event dead-lettered")
		if err := r.dlq.InsertTx(tx, f.event.DeadLetter(f.reason, f.err, r.now().UTC())); err != nil {
			return fmt.Errorf("insert dlq %s: %w", f.event.ID, err)
		}
		if err := r.repo.Park(tx, f.event.ID, f.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", f.event.ID, err)
		}
		r.metrics.IncDeadLettered(string(f.reason))
	}
	return nil
}

// buildMessage keys messages by tenant so each storefront's events stay in
// commit order; events without a tenant fall back to their aggregate.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	key := event.AggregateID.String()
	if tenant := resolved.Envelope.TenantID; tenant != "" {
		attrs["tenant_id"] = tenant
		key = tenant
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: key,
	}
}

func (r *Relay) logFields(f *inflight) map[string]any {
	fields := map[string]any{
		"outbox_id":      f.event.ID.String(),
		"event_type":     f.event.EventType,
		"aggregate_type": f.event.AggregateType,
		"aggregate_id":   f.event.AggregateID.String(),
		"attempt_count":  f.event.AttemptCount,
	}
	if topic := f.topic(); topic != "" {
		fields["topic"] = topic
	}
	if tenant := f.tenantID(); tenant != "" {
		fields["tenant_id"] = tenant
	}
	return fields
}
