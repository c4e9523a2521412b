package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_LockExcludes(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			unlock, err := l.Lock(ctx, "cncf/repo")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, l.keys)
}

func TestLocal_IndependentKeys(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, ok, err := l.TryLock(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	unlockB()
}

func TestLocal_TryLockBusy(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a")
	require.NoError(t, err)

	_, ok, err := l.TryLock(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	unlock() // Second call is a no-op

	again, ok, err := l.TryLock(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func TestLocal_LockHonorsContext(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	l, err := New(context.Background(), schema.LocalLock, "", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, l)
	assert.NoError(t, l.Close())

	_, err = New(context.Background(), "zookeeper", "", time.Minute)
	assert.ErrorContains(t, err, "unsupported lock backend")
}

func TestAdvisoryKey64(t *testing.T) {
	a := advisoryKey64(Namespace, "cncf/a")
	assert.Equal(t, a, advisoryKey64(Namespace, "cncf/a"))
	assert.NotEqual(t, a, advisoryKey64(Namespace, "cncf/b"))
	assert.NotEqual(t, a, advisoryKey64("other", "cncf/a"))
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
