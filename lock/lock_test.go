package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Exclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "regulation:1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, unlock(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, l.Len())
}

func TestLocal_KeysIndependent(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "regulation:1")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "regulation:2")
	require.NoError(t, err)

	require.NoError(t, u1(ctx))
	require.NoError(t, u2(ctx))
}

func TestLocal_ContextCanceled(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "regulation:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "regulation:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(context.Background()))
	assert.Zero(t, l.Len())
}

func TestLocal_DoubleUnlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, unlock(ctx))
	assert.ErrorIs(t, unlock(ctx), ErrLockNotHeld)
}
