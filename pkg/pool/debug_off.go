//go:build !debug

package pool

type debugState struct{}

func newDebugState(string) *debugState { return nil }

func (d *debugState) recordAcquire(uint64) {}

func (d *debugState) recordRelease(uint64) {}

func (d *debugState) activeStacks() []string { return nil }
