package pool

import (
	"fmt"
	"io"
	"reflect"
	"sync/atomic"

	"github.com/coachpo/reusable/internal/observability"
)

const (
	guardLive uint32 = iota
	guardReleased
	guardDetached
)

// Guard owns one borrowed value and, optionally, the pool it goes back to.
// Release hands the value back exactly once; Detach takes it out of pool
// management instead. The two are mutually exclusive. A Guard belongs to one
// goroutine at a time.
type Guard[T any] struct {
	pool  *Pool[T]
	value T
	id    uint64
	state atomic.Uint32
}

// NewGuard wraps value. When p is non-nil, releasing the guard attaches value
// to p; when p is nil the guard owns value outright.
func NewGuard[T any](p *Pool[T], value T) *Guard[T] {
	g := &Guard[T]{pool: p, value: value}
	if p != nil {
		p.checkout(g)
	}
	return g
}

// Value returns a pointer to the wrapped value for reading and writing. The
// pointer must not be used after the guard is released or detached.
func (g *Guard[T]) Value() *T {
	g.mustBeLive("value")
	return &g.value
}

// Get returns the wrapped value.
func (g *Guard[T]) Get() T {
	g.mustBeLive("get")
	return g.value
}

// Pool returns the pool the guard returns to, or nil when it has none.
func (g *Guard[T]) Pool() *Pool[T] {
	return g.pool
}

// Live reports whether the guard still holds its value.
func (g *Guard[T]) Live() bool {
	return g != nil && g.state.Load() == guardLive
}

// Detach disarms the guard and hands the caller its pool association and
// value. The value is no longer tracked by the pool: the caller may drop it,
// wrap it in a new guard, or Attach it (or a replacement) to the pool.
// Detach panics if the guard was already released or detached.
func (g *Guard[T]) Detach() (*Pool[T], T) {
	if !g.state.CompareAndSwap(guardLive, guardDetached) {
		panic(fmt.Sprintf("%s: detach of %s guard", g.label(), g.stateName()))
	}
	p, value := g.pool, g.value
	g.clear()
	if p != nil {
		p.checkin(g.id)
	}
	return p, value
}

// Release returns the value to the guard's pool. Without a pool the value is
// dropped, and closed first when it implements io.Closer. Release is meant to
// be deferred: calls after the first, after Detach, or on a nil guard are
// no-ops.
func (g *Guard[T]) Release() {
	if g == nil || !g.state.CompareAndSwap(guardLive, guardReleased) {
		return
	}
	p, value := g.pool, g.value
	g.clear()
	if p != nil {
		p.Attach(value)
		p.checkin(g.id)
		return
	}
	dispose(value)
}

func (g *Guard[T]) clear() {
	var zero T
	g.value = zero
}

func (g *Guard[T]) mustBeLive(op string) {
	if g.state.Load() != guardLive {
		panic(fmt.Sprintf("%s: %s on %s guard", g.label(), op, g.stateName()))
	}
}

func (g *Guard[T]) label() string {
	if g.pool == nil {
		return "pool <unattached>"
	}
	return "pool " + g.pool.name
}

func (g *Guard[T]) stateName() string {
	switch g.state.Load() {
	case guardLive:
		return "live"
	case guardReleased:
		return "released"
	case guardDetached:
		return "detached"
	default:
		return "unknown"
	}
}

func dispose[T any](value T) {
	closer, ok := any(value).(io.Closer)
	if !ok {
		return
	}
	if rv := reflect.ValueOf(closer); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return
	}
	if err := closer.Close(); err != nil {
		observability.Log().Error("close unpooled value",
			observability.Field{Key: "type", Value: fmt.Sprintf("%T", value)},
			observability.Field{Key: "error", Value: err},
		)
	}
}
