package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type revocationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	RevokedTokenKey(tokenID string) string
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Revocations is a denylist of admin token ids. Entries live until the
// token would have expired anyway.
type Revocations struct {
	store revocationStore
	now   func() time.Time
}

func NewRevocations(store revocationStore) (*Revocations, error) {
	if store == nil {
		return nil, fmt.Errorf("revocation store is required")
	}
	return &Revocations{store: store, now: time.Now}, nil
}

// Revoke denylists the token id until expiresAt. Already expired tokens are a no-op.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, r.store.RevokedTokenKey(tokenID), "1", ttl)
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, nil
	}
	return r.store.Exists(ctx, r.store.RevokedTokenKey(tokenID))
}
