//go:build debug

package pool

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
)

// debugState remembers where each outstanding guard was acquired so leaks can
// be reported when a registry drain times out.
type debugState struct {
	name   string
	mu     sync.Mutex
	stacks map[uint64]string
}

func newDebugState(name string) *debugState {
	return &debugState{
		name:   name,
		stacks: make(map[uint64]string),
	}
}

func (d *debugState) recordAcquire(id uint64) {
	if d == nil || id == 0 {
		return
	}
	stack := string(debug.Stack())
	d.mu.Lock()
	d.stacks[id] = stack
	d.mu.Unlock()
}

func (d *debugState) recordRelease(id uint64) {
	if d == nil || id == 0 {
		return
	}
	d.mu.Lock()
	delete(d.stacks, id)
	d.mu.Unlock()
}

func (d *debugState) activeStacks() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stacks) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(d.stacks))
	for id := range d.stacks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("guard #%d of %s\n%s", id, d.name, d.stacks[id]))
	}
	return out
}
