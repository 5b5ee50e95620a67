package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	l := NewLocker()
	var active, maxActive int32

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "visit:1", time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			assert.NoError(t, unlock(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Zero(t, l.Held(), "entries are dropped once released")
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocker()
	unlockA, err := l.Lock(context.Background(), "visit:1", time.Minute)
	require.NoError(t, err)
	defer unlockA(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "visit:2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlockB(context.Background()))
}

func TestLocker_ContextCancelled(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "visit:1", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "visit:1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLocked)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Held())

	require.NoError(t, unlock(context.Background()))
	require.NoError(t, unlock(context.Background()), "unlock is idempotent")
	assert.Zero(t, l.Held())
}
