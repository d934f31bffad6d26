package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherBoundsConcurrency(t *testing.T) {
	d := NewDispatcher(2)

	var running, peak atomic.Int32
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		require.NoError(t, d.Go("job", func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(2), peak.Load())
	assert.Zero(t, d.pending.Load())
}

func TestDispatcherRecoversPanics(t *testing.T) {
	var (
		mu     sync.Mutex
		caught []string
	)
	d := NewDispatcher(1, WithPanicHandler(func(job string, value any, stack []byte) {
		mu.Lock()
		caught = append(caught, job)
		mu.Unlock()
		assert.NotEmpty(t, stack)
	}))

	require.NoError(t, d.Go("bad", func(context.Context) { panic("boom") }))
	ran := make(chan struct{})
	require.NoError(t, d.Go("good", func(context.Context) { close(ran) }))

	require.NoError(t, d.Close(context.Background()))
	<-ran
	assert.Equal(t, []string{"bad"}, caught)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(1)
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, d.Go("late", func(context.Context) {}), ErrDispatcherClosed)
}

func TestDispatcherCloseTimeoutCancelsJobs(t *testing.T) {
	d := NewDispatcher(1)
	started := make(chan struct{})
	require.NoError(t, d.Go("slow", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}
