// Package resource bounds the concurrency, buffering and IO bandwidth of
// backup and restore transfers.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds transfer limits.
type Config struct {
	// MaxWorkers is the maximum number of concurrent blob transfers.
	// If 0, defaults to 4.
	MaxWorkers int64

	// BufferLimitBytes caps the encoded bytes held in memory by in-flight
	// transfers. If 0, buffering is only tracked.
	BufferLimitBytes int64

	// IOLimitBytesPerSec throttles transfer throughput. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{MaxWorkers: 4}
}

// Controller enforces a Config. A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	workers *semaphore.Weighted

	bufSem  *semaphore.Weighted // nil if unlimited
	bufUsed atomic.Int64

	io *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}
	if cfg.BufferLimitBytes > 0 {
		c.bufSem = semaphore.NewWeighted(cfg.BufferLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireWorker reserves a transfer slot, blocking while all are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.workers.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a transfer slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workers.TryAcquire(1)
}

// ReleaseWorker releases a transfer slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireBuffer reserves bytes of in-flight buffer. With a limit
// configured it blocks until enough is released or ctx is done. A request
// larger than the whole limit is clamped to the limit.
func (c *Controller) AcquireBuffer(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.bufSem != nil {
		if err := c.bufSem.Acquire(ctx, c.clamp(bytes)); err != nil {
			return err
		}
	}
	c.bufUsed.Add(bytes)
	return nil
}

// TryAcquireBuffer reserves buffer bytes without blocking.
func (c *Controller) TryAcquireBuffer(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.bufSem != nil && !c.bufSem.TryAcquire(c.clamp(bytes)) {
		return false
	}
	c.bufUsed.Add(bytes)
	return true
}

// ReleaseBuffer releases bytes reserved with AcquireBuffer.
func (c *Controller) ReleaseBuffer(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.bufSem != nil {
		c.bufSem.Release(c.clamp(bytes))
	}
	c.bufUsed.Add(-bytes)
}

// BufferUsage returns the reserved buffer bytes.
func (c *Controller) BufferUsage() int64 {
	if c == nil {
		return 0
	}
	return c.bufUsed.Load()
}

func (c *Controller) clamp(bytes int64) int64 {
	return min(bytes, c.cfg.BufferLimitBytes)
}

// WaitIO blocks until the IO limit admits bytes. Requests larger than the
// limiter burst are admitted in burst-sized chunks.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || c.io == nil {
		return ctx.Err()
	}
	burst := c.io.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.io.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
