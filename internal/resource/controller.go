package resource

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds the limits of one build. Zero fields are unlimited, except
// Workers, which defaults to 1.
type Config struct {
	// MemoryLimitBytes bounds the block memory sorters keep allocated.
	MemoryLimitBytes int64
	// Workers bounds concurrent block sort and spill jobs.
	Workers int64
	// IOLimitBytesPerSec throttles spill, merge and conversion writes.
	IOLimitBytesPerSec int64
}

// Controller shares one build's block memory, worker slots and write
// bandwidth among its sorters. A nil *Controller imposes no limits.
type Controller struct {
	workers  int64
	slots    *semaphore.Weighted
	mem      *semaphore.Weighted // nil without a memory limit
	reserved atomic.Int64
	io       *rate.Limiter // nil without an IO limit
}

// NewController returns a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{workers: max(cfg.Workers, 1)}
	c.slots = semaphore.NewWeighted(c.workers)
	if cfg.MemoryLimitBytes > 0 {
		c.mem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if n := cfg.IOLimitBytesPerSec; n > 0 {
		c.io = rate.NewLimiter(rate.Limit(n), int(n))
	}
	return c
}

// Workers returns the worker slot count.
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return int(c.workers)
}

// Reserve claims n bytes of block memory without blocking and reports
// whether the budget had room.
func (c *Controller) Reserve(n int64) bool {
	if c == nil || n <= 0 {
		return true
	}
	if c.mem != nil && !c.mem.TryAcquire(n) {
		return false
	}
	c.reserved.Add(n)
	return true
}

// Release returns n bytes claimed by Reserve.
func (c *Controller) Release(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.mem != nil {
		c.mem.Release(n)
	}
	c.reserved.Add(-n)
}

// Reserved returns the block memory currently claimed.
func (c *Controller) Reserved() int64 {
	if c == nil {
		return 0
	}
	return c.reserved.Load()
}

// AcquireWorker blocks for a worker slot or until ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.slots.Acquire(ctx, 1)
}

// ReleaseWorker frees a slot taken by AcquireWorker.
func (c *Controller) ReleaseWorker() {
	if c != nil {
		c.slots.Release(1)
	}
}

// WaitIO blocks until n bytes may be written. Requests above the limiter's
// burst are admitted in burst-sized steps.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	for burst := c.io.Burst(); n > 0; n -= burst {
		if err := c.io.WaitN(ctx, min(n, burst)); err != nil {
			return err
		}
	}
	return nil
}

// NewWriter throttles writes to w through rc. Without an IO limit it
// returns w itself.
func NewWriter(ctx context.Context, w io.Writer, rc *Controller) io.Writer {
	if rc == nil || rc.io == nil {
		return w
	}
	return &throttled{ctx: ctx, w: w, rc: rc}
}

type throttled struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

func (t *throttled) Write(p []byte) (int, error) {
	if err := t.rc.WaitIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}
