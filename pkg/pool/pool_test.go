package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllTasks(t *testing.T) {
	ctx := context.Background()
	p := New(ctx, nil, Config{Workers: 4})

	var done int64
	for i := 0; i < 20; i++ {
		err := p.Submit(ctx, func(context.Context) error {
			atomic.AddInt64(&done, 1)
			return nil
		})
		require.NoError(t, err)
	}

	assert.Empty(t, p.Wait())
	assert.Equal(t, int64(20), atomic.LoadInt64(&done))
}

func TestPoolCollectsErrors(t *testing.T) {
	ctx := context.Background()
	p := New(ctx, nil, Config{Workers: 2})

	boom := errors.New("boom")
	var done int64
	for i := 0; i < 10; i++ {
		i := i
		err := p.Submit(ctx, func(context.Context) error {
			atomic.AddInt64(&done, 1)
			if i%2 == 0 {
				return boom
			}
			return nil
		})
		require.NoError(t, err)
	}

	errs := p.Wait()
	assert.Len(t, errs, 5)
	// Failed tasks do not stop the rest of the pool.
	assert.Equal(t, int64(10), atomic.LoadInt64(&done))
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	poolCtx := context.Background()
	p := New(poolCtx, nil, Config{Workers: 1, QueueSize: 1})

	// Block the single worker and fill the buffer.
	release := make(chan struct{})
	require.NoError(t, p.Submit(poolCtx, func(context.Context) error {
		<-release
		return nil
	}))
	require.NoError(t, p.Submit(poolCtx, func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Submit(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.Empty(t, p.Wait())
}

func TestPoolDefaultsWorkers(t *testing.T) {
	ctx := context.Background()
	p := New(ctx, nil, Config{})

	var done int64
	require.NoError(t, p.Submit(ctx, func(context.Context) error {
		atomic.AddInt64(&done, 1)
		return nil
	}))
	assert.Empty(t, p.Wait())
	assert.Equal(t, int64(1), atomic.LoadInt64(&done))
}
