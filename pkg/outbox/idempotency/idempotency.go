// Package idempotency remembers which event ids have been handled, so a
// redelivered Pub/Sub message or provider webhook is skipped.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store is the Redis surface a Ledger needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Ledger marks ids under one scope. Marks expire after ttl, so redeliveries
// older than that are handled again.
type Ledger struct {
	store Store
	scope string
	ttl   time.Duration
}

func NewLedger(store Store, scope string, ttl time.Duration) (*Ledger, error) {
	scope = strings.TrimSpace(scope)
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case scope == "":
		return nil, errors.New("idempotency scope is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}
	return &Ledger{store: store, scope: scope, ttl: ttl}, nil
}

// ConsumerScope names the ledger of one Pub/Sub consumer.
func ConsumerScope(consumer string) string {
	return "evt:processed:" + consumer
}

// Seen marks id and reports whether it was already marked. It claims the id
// before the work runs, so it suits consumers whose work cannot fail halfway.
func (l *Ledger) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("event id is required")
	}
	set, err := l.store.SetNX(ctx, l.store.IdempotencyKey(l.scope, id), "1", l.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s event %s: %w", l.scope, id, err)
	}
	return !set, nil
}

// Processed reports whether id was marked, without claiming it.
func (l *Ledger) Processed(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("event id is required")
	}
	ok, err := l.store.Exists(ctx, l.store.IdempotencyKey(l.scope, id))
	if err != nil {
		return false, fmt.Errorf("check %s event %s: %w", l.scope, id, err)
	}
	return ok, nil
}

// MarkProcessed records id once its work has completed.
func (l *Ledger) MarkProcessed(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("event id is required")
	}
	if err := l.store.Set(ctx, l.store.IdempotencyKey(l.scope, id), "1", l.ttl); err != nil {
		return fmt.Errorf("mark %s event %s: %w", l.scope, id, err)
	}
	return nil
}
