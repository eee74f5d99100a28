package climit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestConcurrencyLimit(t *testing.T) {
	ctx := context.Background()
	cl := New("test", 2, nil)

	t1, err := cl.Acquire(ctx)
	require.NoError(t, err)
	t2, err := cl.Acquire(ctx)
	require.NoError(t, err)

	// No tokens left
	shortCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = cl.Acquire(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Release a token
	assert.NotZero(t, t2.Release())
	t3, err := cl.Acquire(ctx)
	require.NoError(t, err)

	// Release the same again, nothing happens
	assert.Zero(t, t2.Release())
	shortCtx2, cancel2 := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel2()
	_, err = cl.Acquire(shortCtx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "double release does not add a token")

	t1.Release()
	t3.Release()
}

func TestDo(t *testing.T) {
	ctx := context.Background()
	cl := New("test-do", 3, nil)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := cl.Do(ctx, func() error {
				n := active.Inc()
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Dec()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(0), active.Load())
}

func TestMinimumLimit(t *testing.T) {
	cl := New("test-min", 0, nil)
	assert.Equal(t, 1, cap(cl.ch))
}
