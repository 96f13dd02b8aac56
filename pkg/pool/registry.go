package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/coachpo/reusable/errs"
	"github.com/coachpo/reusable/internal/observability"
)

const (
	registryComponent    = "pool/registry"
	defaultDrainTimeout  = 5 * time.Second
	drainInitialInterval = time.Millisecond
	drainMaxInterval     = 100 * time.Millisecond
)

var (
	// ErrPoolNotRegistered indicates the requested pool has not been registered.
	ErrPoolNotRegistered = errors.New("pool registry: pool not registered")
	// ErrRegistryClosed indicates the registry is draining and accepts no new pools.
	ErrRegistryClosed = errors.New("pool registry: drain in progress")
)

// Tracked is implemented by every *Pool[T]; it lets pools of different
// element types share one Registry.
type Tracked interface {
	Name() string
	Stats() Stats
	Outstanding() int64
	activeStacks() []string
}

// Registry indexes pools by name for diagnostics, telemetry and shutdown.
type Registry struct {
	mu        sync.RWMutex
	pools     map[string]Tracked
	closed    chan struct{}
	closeOnce sync.Once
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	r := new(Registry)
	r.pools = make(map[string]Tracked)
	r.closed = make(chan struct{})
	return r
}

// Register adds p under its name. Names must be unique.
func (r *Registry) Register(p Tracked) error {
	if p == nil {
		return errs.New(registryComponent, errs.CodeInvalid, errs.WithMessage("pool must not be nil"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closed:
		return ErrRegistryClosed
	default:
	}

	name := p.Name()
	if _, exists := r.pools[name]; exists {
		return errs.New(registryComponent, errs.CodeConflict,
			errs.WithMessage("pool already registered"),
			errs.WithField("pool", name),
			errs.WithRemediation("give each pool a unique label"),
		)
	}
	r.pools[name] = p
	return nil
}

// Get returns the pool registered under name.
func (r *Registry) Get(name string) (Tracked, error) {
	r.mu.RLock()
	p, ok := r.pools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotRegistered, name)
	}
	return p, nil
}

// Names returns the registered pool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns the stats of every registered pool, sorted by name.
func (r *Registry) Snapshot() []Stats {
	pools := r.list()
	out := make([]Stats, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WriteJSON writes the registry snapshot to w as a JSON array.
func (r *Registry) WriteJSON(w io.Writer) error {
	return WriteJSON(w, r.Snapshot())
}

// Drain closes the registry to new pools and waits until every guard handed
// out by a registered pool has been released or detached. Without a deadline
// on ctx the wait is capped at five seconds. On timeout the outstanding guards
// are logged, with acquisition stacks in debug builds.
func (r *Registry) Drain(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultDrainTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	r.closeOnce.Do(func() {
		close(r.closed)
	})

	poll := backoff.NewExponentialBackOff()
	poll.InitialInterval = drainInitialInterval
	poll.MaxInterval = drainMaxInterval

	for {
		remaining := r.outstanding()
		if remaining <= 0 {
			observability.Log().Info("pool registry drained",
				observability.Field{Key: "pools", Value: len(r.Names())})
			return nil
		}

		sleep := poll.NextBackOff()
		if sleep == backoff.Stop {
			sleep = drainMaxInterval
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logOutstanding(remaining)
			return errs.New(registryComponent, errs.CodeTimeout,
				errs.WithMessage(fmt.Sprintf("drain timeout: %d guards outstanding", remaining)),
				errs.WithCause(ctx.Err()),
			)
		case <-timer.C:
		}
	}
}

func (r *Registry) list() []Tracked {
	r.mu.RLock()
	out := make([]Tracked, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	r.mu.RUnlock()
	return out
}

func (r *Registry) outstanding() int64 {
	var total int64
	for _, p := range r.list() {
		total += p.Outstanding()
	}
	return total
}

func (r *Registry) logOutstanding(remaining int64) {
	logger := observability.Log()
	logger.Error("pool registry: drain timed out",
		observability.Field{Key: "outstanding", Value: remaining})
	for _, p := range r.list() {
		for _, stack := range p.activeStacks() {
			logger.Error("pool registry: leak candidate",
				observability.Field{Key: "pool", Value: p.Name()},
				observability.Field{Key: "stack", Value: stack},
			)
		}
	}
}
