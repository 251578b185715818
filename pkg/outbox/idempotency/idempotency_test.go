package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	keys   map[string]time.Duration
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.keys[key] = ttl
	return nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.keys[key]
	return ok, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func TestLedgerSeenClaimsOnce(t *testing.T) {
	store := newMemoryStore()
	ledger, err := NewLedger(store, ConsumerScope("tenant-cache-web.1"), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := ledger.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, time.Hour, store.keys["sf:idempotency:evt:processed:tenant-cache-web.1:evt-1"])

	seen, err = ledger.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLedgerProcessedOnlyAfterMark(t *testing.T) {
	store := newMemoryStore()
	ledger, err := NewLedger(store, "stripe-webhook", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	done, err := ledger.Processed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)
	done, err = ledger.Processed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done, "checking must not claim the id")

	require.NoError(t, ledger.MarkProcessed(ctx, "evt-1"))
	assert.Equal(t, time.Hour, store.keys["sf:idempotency:stripe-webhook:evt-1"])
	done, err = ledger.Processed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)

	require.Error(t, ledger.MarkProcessed(ctx, ""))
	store.setErr = errors.New("connection refused")
	require.ErrorIs(t, ledger.MarkProcessed(ctx, "evt-2"), store.setErr)
}

func TestLedgerScopesAreIsolated(t *testing.T) {
	store := newMemoryStore()
	a, err := NewLedger(store, ConsumerScope("a"), time.Minute)
	require.NoError(t, err)
	b, err := NewLedger(store, ConsumerScope("b"), time.Minute)
	require.NoError(t, err)

	_, err = a.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	seen, err := b.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLedgerSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("connection refused")
	ledger, err := NewLedger(store, "stripe-webhook", time.Minute)
	require.NoError(t, err)

	_, err = ledger.Seen(context.Background(), "evt_1")
	require.ErrorIs(t, err, store.setErr)
	_, err = ledger.Seen(context.Background(), "")
	require.Error(t, err)
}

func TestNewLedgerValidation(t *testing.T) {
	_, err := NewLedger(nil, "x", time.Minute)
	require.Error(t, err)
	_, err = NewLedger(newMemoryStore(), " ", time.Minute)
	require.Error(t, err)
	_, err = NewLedger(newMemoryStore(), "x", 0)
	require.Error(t, err)
}
