package autoscaler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func newLockTestClient(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDistributedLock_SingleInstance(t *testing.T) {
	client := newLockTestClient(t)

	lock := NewRedisDistributedLock(client, "test:cycle-lock")
	ctx := context.Background()

	acquired, err := lock.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, lock.IsHeld())

	err = lock.Unlock(ctx)
	assert.NoError(t, err)
	assert.False(t, lock.IsHeld())
}

func TestDistributedLock_SecondInstanceBlocked(t *testing.T) {
	client := newLockTestClient(t)

	lock1 := NewRedisDistributedLock(client, "test:cycle-lock-multi")
	lock2 := NewRedisDistributedLock(client, "test:cycle-lock-multi")
	ctx := context.Background()

	acquired1, err := lock1.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired1)

	// Second instance must be refused while the first holds the key.
	acquired2, err := lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.False(t, acquired2, "second instance should not acquire a held lock")

	err = lock1.Unlock(ctx)
	assert.NoError(t, err)

	acquired2, err = lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired2, "lock should be free after the first instance released it")

	err = lock2.Unlock(ctx)
	assert.NoError(t, err)
}

func TestDistributedLock_AutoExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	defer client.Close()

	lock1 := NewRedisDistributedLock(client, "test:cycle-lock-expire")
	lock2 := NewRedisDistributedLock(client, "test:cycle-lock-expire")
	ctx := context.Background()

	acquired1, err := lock1.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired1)

	// Simulate a crashed holder: advance miniredis past the TTL.
	mr.FastForward(lockTTL + time.Second)

	acquired2, err := lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired2, "lock should be available after TTL expiration")

	err = lock2.Unlock(ctx)
	assert.NoError(t, err)
}

func TestDistributedLock_NilClientSingleInstanceMode(t *testing.T) {
	lock := NewRedisDistributedLock(nil, "test:cycle-lock-nil")
	ctx := context.Background()

	acquired, err := lock.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, lock.IsHeld())

	err = lock.Unlock(ctx)
	assert.NoError(t, err)
	assert.False(t, lock.IsHeld())
}

func TestDistributedLock_ExactlyOneWinner(t *testing.T) {
	client := newLockTestClient(t)

	lock1 := NewRedisDistributedLock(client, "test:cycle-lock-race")
	lock2 := NewRedisDistributedLock(client, "test:cycle-lock-race")
	ctx := context.Background()

	acquired1, err1 := lock1.TryLock(ctx)
	acquired2, err2 := lock2.TryLock(ctx)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.True(t, acquired1 != acquired2, "exactly one instance should win the lock")

	if acquired1 {
		lock1.Unlock(ctx)
	}
	if acquired2 {
		lock2.Unlock(ctx)
	}
}

func TestDistributedLock_ReacquireAfterUnlock(t *testing.T) {
	client := newLockTestClient(t)

	lock := NewRedisDistributedLock(client, "test:cycle-lock-reuse")
	ctx := context.Background()

	// A single instance cycles the lock once per scaling cycle.
	for i := 0; i < 3; i++ {
		acquired, err := lock.TryLock(ctx)
		assert.NoError(t, err)
		assert.True(t, acquired, "cycle %d should acquire the lock", i)

		err = lock.Unlock(ctx)
		assert.NoError(t, err)
		assert.False(t, lock.IsHeld())
	}
}
