// Package resource bounds the background work a hierarchy may generate:
// concurrent table builds during bulk linking and IO throughput during
// archive export. The subtype-check path never touches it.
package resource

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBuildWorkers is the maximum number of concurrent table builds in a
	// DefineAll batch. If 0, defaults to GOMAXPROCS.
	MaxBuildWorkers int64

	// IOLimitBytesPerSec caps archive write throughput. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces the configured limits. A nil Controller enforces
// nothing, so holders can call it unconditionally.
type Controller struct {
	buildSem  *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	if cfg.MaxBuildWorkers <= 0 {
		cfg.MaxBuildWorkers = int64(runtime.GOMAXPROCS(0))
	}
	c := &Controller{
		buildSem: semaphore.NewWeighted(cfg.MaxBuildWorkers),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Do runs fn while holding a build worker slot, blocking for a slot if all
// are busy. It returns ctx's error if the wait is canceled.
func (c *Controller) Do(ctx context.Context, fn func() error) error {
	if c == nil || c.buildSem == nil {
		return fn()
	}
	if err := c.buildSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.buildSem.Release(1)
	return fn()
}

// WaitIO blocks until the IO limit allows n more bytes.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}
	// rate.Limiter cannot wait for more than a burst at once.
	burst := c.ioLimiter.Burst()
	for n > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		n -= burst
	}
	return c.ioLimiter.WaitN(ctx, n)
}
