package registry

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemory_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	ok, err := reg.Acquire(ctx, "CA1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Acquire(ctx, "CA1")
	require.NoError(t, err)
	assert.False(t, ok, "second session for the same call must be refused")

	ok, _ = reg.Acquire(ctx, "CA2")
	assert.True(t, ok)

	require.NoError(t, reg.Release(ctx, "CA1"))
	ok, _ = reg.Acquire(ctx, "CA1")
	assert.True(t, ok)
}

func TestNewRedis_NonPositiveTTLUsesDefaultLease(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	assert.Equal(t, DefaultLease, NewRedis(client, 0, zap.NewNop()).ttl)
	assert.Equal(t, DefaultLease, NewRedis(client, -time.Second, zap.NewNop()).ttl)
	assert.Equal(t, 2*time.Minute, NewRedis(client, 2*time.Minute, zap.NewNop()).ttl)
}

func redisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedis_AcquireRelease(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	callID := "test-" + t.Name()
	defer client.Del(ctx, key(callID))

	first := NewRedis(client, time.Minute, zap.NewNop())
	second := NewRedis(client, time.Minute, zap.NewNop())

	ok, err := first.Acquire(ctx, callID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, callID)
	require.NoError(t, err)
	assert.False(t, ok, "another instance must not take over a live call")

	// Una instancia que no es dueña no puede liberar el registro
	require.NoError(t, second.Release(ctx, callID))
	assert.Equal(t, int64(1), client.Exists(ctx, key(callID)).Val())

	require.NoError(t, first.Release(ctx, callID))
	assert.Equal(t, int64(0), client.Exists(ctx, key(callID)).Val())

	ok, err = second.Acquire(ctx, callID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx, callID))
}

func TestRedis_RegistrationExpires(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	callID := "test-" + t.Name()
	defer client.Del(ctx, key(callID))

	reg := NewRedis(client, time.Minute, zap.NewNop())
	ok, err := reg.Acquire(ctx, callID)
	require.NoError(t, err)
	require.True(t, ok)

	ttl := client.TTL(ctx, key(callID)).Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedis_LeaseRenewedWhileCallIsLive(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	callID := "test-" + t.Name()
	defer client.Del(ctx, key(callID))

	reg := NewRedis(client, 300*time.Millisecond, zap.NewNop())
	ok, err := reg.Acquire(ctx, callID)
	require.NoError(t, err)
	require.True(t, ok)

	// Well past the lease: only renewal keeps the key alive.
	time.Sleep(time.Second)
	assert.Equal(t, int64(1), client.Exists(ctx, key(callID)).Val())

	ok, err = NewRedis(client, time.Minute, zap.NewNop()).Acquire(ctx, callID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reg.Release(ctx, callID))
	assert.Equal(t, int64(0), client.Exists(ctx, key(callID)).Val())
}
