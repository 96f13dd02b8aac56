// Package workload drives concurrent borrow/return traffic against a buffer pool.
package workload

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	concpool "github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/coachpo/reusable/errs"
	"github.com/coachpo/reusable/internal/config"
	"github.com/coachpo/reusable/internal/observability"
	"github.com/coachpo/reusable/pkg/pool"
)

const workloadComponent = "workload"

// Config controls one workload run.
type Config struct {
	Workers       int
	Iterations    int
	RatePerSecond float64
	Burst         int
	PayloadSize   int
	BufferSize    int
	DetachEvery   int
	Hold          time.Duration
}

// FromConfig builds a workload Config for a pool from the application config.
func FromConfig(w config.WorkloadConfig, p config.PoolConfig) Config {
	return Config{
		Workers:       w.Workers,
		Iterations:    w.Iterations,
		RatePerSecond: w.RatePerSecond,
		Burst:         w.Burst,
		PayloadSize:   w.PayloadSize,
		BufferSize:    p.BufferSize,
		DetachEvery:   w.DetachEvery,
		Hold:          w.Hold,
	}
}

// Result summarises a run.
type Result struct {
	Pool      string        `json:"pool"`
	Borrows   int64         `json:"borrows"`
	Fallbacks uint64        `json:"fallbacks"`
	Detached  int64         `json:"detached"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Run has cfg.Workers goroutines each perform cfg.Iterations borrows from p.
// Every borrow writes a payload into the buffer and releases it. Every
// cfg.DetachEvery-th borrow detaches its buffer and attaches a freshly
// allocated one in its place. The first error cancels the remaining workers.
func Run(ctx context.Context, p *pool.Pool[*bytes.Buffer], cfg Config) (Result, error) {
	if p == nil {
		return Result{}, errs.New(workloadComponent, errs.CodeInvalid, errs.WithMessage("pool required"))
	}
	if cfg.Workers <= 0 {
		return Result{}, errs.New(workloadComponent, errs.CodeInvalid, errs.WithMessage("workers must be >0"))
	}
	if cfg.Iterations < 0 || cfg.PayloadSize < 0 || cfg.DetachEvery < 0 {
		return Result{}, errs.New(workloadComponent, errs.CodeInvalid, errs.WithMessage("iterations, payload size and detach interval must be >=0"))
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	payload := bytes.Repeat([]byte{'x'}, cfg.PayloadSize)
	fallback := func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, cfg.BufferSize))
	}

	var (
		borrows  atomic.Int64
		detached atomic.Int64
	)
	startFails := p.FailCount()
	started := time.Now()

	workers := concpool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(cfg.Workers)
	for w := 0; w < cfg.Workers; w++ {
		workers.Go(func(ctx context.Context) error {
			for i := 0; i < cfg.Iterations; i++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return fmt.Errorf("workload %s: rate limit wait: %w", p.Name(), err)
					}
				} else if err := ctx.Err(); err != nil {
					return fmt.Errorf("workload %s: %w", p.Name(), err)
				}

				n := borrows.Add(1)
				substitute := cfg.DetachEvery > 0 && n%int64(cfg.DetachEvery) == 0
				if err := borrow(ctx, p, fallback, payload, cfg.Hold, substitute); err != nil {
					return err
				}
				if substitute {
					detached.Add(1)
				}
			}
			return nil
		})
	}
	err := workers.Wait()

	result := Result{
		Pool:      p.Name(),
		Borrows:   borrows.Load(),
		Fallbacks: p.FailCount() - startFails,
		Detached:  detached.Load(),
		Elapsed:   time.Since(started),
	}
	observability.Log().Info("workload finished",
		observability.Field{Key: "pool", Value: result.Pool},
		observability.Field{Key: "borrows", Value: result.Borrows},
		observability.Field{Key: "fallbacks", Value: result.Fallbacks},
		observability.Field{Key: "detached", Value: result.Detached},
		observability.Field{Key: "elapsed", Value: result.Elapsed},
	)
	return result, err
}

func borrow(ctx context.Context, p *pool.Pool[*bytes.Buffer], fallback func() *bytes.Buffer, payload []byte, hold time.Duration, substitute bool) error {
	g := pool.Pull(p, fallback)
	defer g.Release()

	buf := g.Get()
	buf.Reset()
	if _, err := buf.Write(payload); err != nil {
		return fmt.Errorf("workload %s: write payload: %w", p.Name(), err)
	}

	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("workload %s: %w", p.Name(), ctx.Err())
		case <-timer.C:
		}
	}

	if substitute {
		owner, _ := g.Detach()
		owner.Attach(fallback())
	}
	return nil
}
