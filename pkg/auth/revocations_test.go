package auth

import (
	"context"
	"testing"
	"time"
)

type memoryRevocationStore struct {
	data map[string]time.Duration
}

func (m *memoryRevocationStore) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	m.data[key] = ttl
	return nil
}

func (m *memoryRevocationStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memoryRevocationStore) RevokedTokenKey(tokenID string) string {
	return "revoked:" + tokenID
}

func TestRevocations(t *testing.T) {
	ctx := context.Background()
	store := &memoryRevocationStore{data: map[string]time.Duration{}}
	revocations, err := NewRevocations(store)
	if err != nil {
		t.Fatalf("new revocations: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	revocations.now = func() time.Time { return now }

	if err := revocations.Revoke(ctx, "jti-1", now.Add(20*time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ttl := store.data["revoked:jti-1"]; ttl != 20*time.Minute {
		t.Fatalf("expected ttl to match remaining lifetime, got %v", ttl)
	}

	revoked, err := revocations.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v (%v)", revoked, err)
	}
	if revoked, _ := revocations.IsRevoked(ctx, "jti-2"); revoked {
		t.Fatal("jti-2 was never revoked")
	}

	if err := revocations.Revoke(ctx, "jti-old", now.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	if _, ok := store.data["revoked:jti-old"]; ok {
		t.Fatal("expired tokens should not be stored")
	}

	if err := revocations.Revoke(ctx, " ", now.Add(time.Minute)); err == nil {
		t.Fatal("expected error for blank token id")
	}
}
