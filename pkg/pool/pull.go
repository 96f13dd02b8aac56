package pool

import "fmt"

// TryPull borrows an idle instance from p without blocking. It reports false
// when p is saturated.
func TryPull[T any](p *Pool[T]) (*Guard[T], bool) {
	return p.TryAcquire()
}

// Pull borrows an idle instance from p, or wraps fallback() in a guard that
// returns to p when p is saturated. Unlike a pool-wide factory, the fallback
// is chosen per call.
func Pull[T any](p *Pool[T], fallback func() T) *Guard[T] {
	return p.AcquireOrCreate(fallback)
}

// Lookup returns the pool registered under name in r, typed as *Pool[T].
func Lookup[T any](r *Registry, name string) (*Pool[T], error) {
	tracked, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	p, ok := tracked.(*Pool[T])
	if !ok {
		return nil, fmt.Errorf("pool %s: unexpected type %T", name, tracked)
	}
	return p, nil
}
