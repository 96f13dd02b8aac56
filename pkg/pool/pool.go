// Package pool provides a concurrent object pool with guard-based borrowing.
//
// A Pool is filled with capacity instances at construction. Callers borrow an
// instance through a Guard and return it by releasing the guard, typically
// with defer:
//
//	buf := pool.Pull(buffers, func() *bytes.Buffer { return new(bytes.Buffer) })
//	defer buf.Release()
//	buf.Get().Reset()
//
// Returned objects are not reset; callers clear them after borrowing.
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/reusable/internal/observability"
)

// Pool holds idle instances of T. The zero value is not usable; construct with New.
// A *Pool is safe for concurrent use and is shared by passing the pointer around.
type Pool[T any] struct {
	name     string
	capacity int

	mu   sync.Mutex
	idle []T

	failCount atomic.Uint64
	failMu    sync.Mutex
	lastFail  time.Time

	outstanding atomic.Int64
	nextID      atomic.Uint64

	clock  func() time.Time
	logger observability.Logger
	debug  *debugState
}

// New constructs a pool labelled label and fills it by calling factory
// capacity times. An empty label is replaced by a generated one. New panics
// when capacity is negative or factory is nil.
func New[T any](label string, capacity int, factory func() T, opts ...Option) *Pool[T] {
	if label == "" {
		label = "pool-" + uuid.NewString()
	}
	if capacity < 0 {
		panic(fmt.Sprintf("pool %s: capacity must not be negative", label))
	}
	if factory == nil {
		panic(fmt.Sprintf("pool %s: factory must be provided", label))
	}

	cfg := settings{clock: time.Now, logger: nil}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	p := new(Pool[T])
	p.name = label
	p.capacity = capacity
	p.clock = cfg.clock
	p.logger = cfg.logger
	p.debug = newDebugState(label)

	p.idle = make([]T, 0, capacity)
	for i := 0; i < capacity; i++ {
		p.idle = append(p.idle, factory())
	}
	return p
}

// Name returns the pool label.
func (p *Pool[T]) Name() string { return p.name }

// Capacity returns the number of instances created at construction. It is the
// initial fill level, not a ceiling: Attach may grow the pool past it.
func (p *Pool[T]) Capacity() int { return p.capacity }

// Size returns the number of idle instances. The value may be stale as soon as
// it is returned when other goroutines use the pool.
func (p *Pool[T]) Size() int {
	p.mu.Lock()
	n := len(p.idle)
	p.mu.Unlock()
	return n
}

// IsEmpty reports whether the pool has no idle instances.
func (p *Pool[T]) IsEmpty() bool {
	return p.Size() == 0
}

// Attach adds value to the idle instances. No capacity check is applied.
func (p *Pool[T]) Attach(value T) {
	p.mu.Lock()
	p.idle = append(p.idle, value)
	p.mu.Unlock()
}

// TryAcquire borrows the most recently returned idle instance. It never
// blocks and reports false when the pool is empty.
func (p *Pool[T]) TryAcquire() (*Guard[T], bool) {
	value, ok := p.pop()
	if !ok {
		return nil, false
	}
	return NewGuard(p, value), true
}

// AcquireOrCreate borrows an idle instance, or wraps the result of fallback
// when the pool is empty. The fallback runs outside the pool lock and the
// resulting guard returns its value to this pool. Every fallback is recorded
// as a saturation event.
func (p *Pool[T]) AcquireOrCreate(fallback func() T) *Guard[T] {
	if fallback == nil {
		panic(fmt.Sprintf("pool %s: fallback must be provided", p.name))
	}
	if g, ok := p.TryAcquire(); ok {
		return g
	}
	p.recordSaturation()
	return NewGuard(p, fallback())
}

// FailCount returns the number of saturation events observed so far.
func (p *Pool[T]) FailCount() uint64 {
	return p.failCount.Load()
}

// LastFail returns the time of the most recent saturation event, or the zero
// time when the pool has never been saturated.
func (p *Pool[T]) LastFail() time.Time {
	p.failMu.Lock()
	defer p.failMu.Unlock()
	return p.lastFail
}

// Outstanding returns the number of live guards associated with the pool.
func (p *Pool[T]) Outstanding() int64 {
	return p.outstanding.Load()
}

func (p *Pool[T]) pop() (T, bool) {
	var zero T
	p.mu.Lock()
	n := len(p.idle)
	if n == 0 {
		p.mu.Unlock()
		return zero, false
	}
	value := p.idle[n-1]
	p.idle[n-1] = zero
	p.idle = p.idle[:n-1]
	p.mu.Unlock()
	return value, true
}

// recordSaturation runs outside the storage lock; the counter and timestamp
// are diagnostics and may briefly disagree with each other.
func (p *Pool[T]) recordSaturation() {
	count := p.failCount.Add(1)
	now := p.clock()
	p.failMu.Lock()
	if now.After(p.lastFail) {
		p.lastFail = now
	}
	p.failMu.Unlock()
	p.log().Debug("pool saturated, creating fallback instance",
		observability.Field{Key: "pool", Value: p.name},
		observability.Field{Key: "fail_count", Value: count},
	)
}

func (p *Pool[T]) log() observability.Logger {
	if p.logger != nil {
		return p.logger
	}
	return observability.Log()
}

func (p *Pool[T]) checkout(g *Guard[T]) {
	g.id = p.nextID.Add(1)
	p.outstanding.Add(1)
	p.debug.recordAcquire(g.id)
}

func (p *Pool[T]) checkin(id uint64) {
	p.outstanding.Add(-1)
	p.debug.recordRelease(id)
}

func (p *Pool[T]) activeStacks() []string {
	if p == nil {
		return nil
	}
	return p.debug.activeStacks()
}
