package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestIncrWithTTLAttachesExpiryWithNX(t *testing.T) {
	ctx := context.Background()
	mock := newMemoryCommands()
	client := &Client{cmds: mock}

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "sf:rate_limit:ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, mock.ttl["sf:rate_limit:ip"])
	assert.Equal(t, 3, mock.expireCalls)

	_, err := client.IncrWithTTL(ctx, "no-ttl", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, mock.expireCalls)
}

func TestExistsAfterSetAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmds: newMemoryCommands()}
	key := client.RevokedTokenKey("jti-1")

	require.NoError(t, client.Set(ctx, key, "1", 10*time.Minute))
	found, err := client.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, client.Del(ctx, key))
	found, _ = client.Exists(ctx, key)
	assert.False(t, found)
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
	assert.NoError(t, client.Del(ctx))
}

func TestUninitializedClientFails(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	_, err := (&Client{}).SetNX(context.Background(), "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, c.Close())
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sf:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "sf:revoked_token:jti", client.RevokedTokenKey("jti"))
	assert.Equal(t, "sf:idempotency:id", client.IdempotencyKey("", "id"))
	assert.Equal(t, "sf", Key())
}

func TestOptionsMergeURLAndSettings(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "cache:6380", Password: "pw", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = options(config.RedisConfig{})
	assert.Error(t, err)
}

type memoryCommands struct {
	data        map[string]string
	counters    map[string]int64
	ttl         map[string]time.Duration
	expireCalls int
}

func newMemoryCommands() *memoryCommands {
	return &memoryCommands{
		data:     map[string]string{},
		counters: map[string]int64{},
		ttl:      map[string]time.Duration{},
	}
}

func (m *memoryCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counters[key]++
	return redis.NewIntResult(m.counters[key], nil)
}

func (m *memoryCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireCalls++
	if _, ok := m.ttl[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *memoryCommands) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}
