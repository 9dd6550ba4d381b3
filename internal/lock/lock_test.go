package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "user-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestKeyedMutex_MutualExclusion(t *testing.T) {
	m := NewKeyedMutex()
	exerciseMutualExclusion(t, m)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	m := NewKeyedMutex()

	releaseA, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	releaseB, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	m := NewKeyedMutex()

	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // повторный вызов безопасен
	assert.Equal(t, 0, m.Len())
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisLocker(client, 5*time.Second)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	_, l := setupMiniRedis(t)
	exerciseMutualExclusion(t, l)
}

func TestRedisLocker_ReleaseDeletesKey(t *testing.T) {
	mr, l := setupMiniRedis(t)

	release, err := l.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:payment:user-1"))

	release()
	assert.False(t, mr.Exists("lock:payment:user-1"))
}

func TestRedisLocker_DoesNotReleaseForeignLock(t *testing.T) {
	mr, l := setupMiniRedis(t)

	release, err := l.Acquire(context.Background(), "user-1")
	require.NoError(t, err)

	// Блокировка истекла и была захвачена другим владельцем
	mr.FastForward(6 * time.Second)
	require.NoError(t, mr.Set("lock:payment:user-1", "someone-else"))

	release()
	got, err := mr.Get("lock:payment:user-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	_, l := setupMiniRedis(t)

	release, err := l.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotAcquired)
}
