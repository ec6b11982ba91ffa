package resource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoLimitsConcurrency(t *testing.T) {
	c := NewController(Config{MaxBuildWorkers: 2})

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Do(context.Background(), func() error {
				cur := active.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int64(2))
}

func TestDoCanceled(t *testing.T) {
	c := NewController(Config{MaxBuildWorkers: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = c.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestNilControllerIsUnlimited(t *testing.T) {
	var c *Controller
	require.NoError(t, c.Do(context.Background(), func() error { return nil }))
	require.NoError(t, c.WaitIO(context.Background(), 1<<30))
}

func TestWaitIOUnlimitedByDefault(t *testing.T) {
	c := NewController(Config{})
	start := time.Now()
	require.NoError(t, c.WaitIO(context.Background(), 1<<30))
	require.Less(t, time.Since(start), time.Second)
}
