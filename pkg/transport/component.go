package transport

import "sync/atomic"

// Priority orders component dispatch within a single tick.
type Priority int

const (
	PRFirst Priority = iota
	PRPreSeq
	PRSeq
	PRPostSeq
	PRLast
)

// Component is the capability set every tick-driven part of the engine
// satisfies, in place of a deep inheritance hierarchy.
type Component interface {
	Start() error
	Stop() error
	Tick(sysTimeMs uint64)
	Running() bool
	Priority() Priority
}

// Base implements the idempotent start/stop/offset bookkeeping common to
// every concrete Component, leaving Tick and Priority to the embedder.
// Running is backed by an atomic so it can be read cross-thread without
// the Manager's lock.
type Base struct {
	running   atomic.Bool
	sysOffset uint64
	devOffset uint64
	clock     *Clock
}

// NewBase wires a Base to the Clock it should start/stop.
func NewBase(clock *Clock) Base {
	return Base{clock: clock}
}

// Start is idempotent: captures the offset and starts the shared Clock.
func (b *Base) Start() error {
	if b.running.Load() {
		return nil
	}
	if b.clock != nil {
		b.sysOffset = b.clock.SysTimeMs()
		b.clock.Start()
	}
	b.running.Store(true)
	return nil
}

// Stop is idempotent.
func (b *Base) Stop() error {
	if !b.running.Load() {
		return nil
	}
	b.running.Store(false)
	if b.clock != nil {
		b.clock.Stop()
	}
	return nil
}

func (b *Base) Running() bool { return b.running.Load() }

// SetDevOffset sets the component's logical-zero offset.
func (b *Base) SetDevOffset(ms uint64) { b.devOffset = ms }

// Elapsed computes elapsed = sysTime - sysOffset + devOffset.
func (b *Base) Elapsed(sysTimeMs uint64) uint64 {
	return sysTimeMs - b.sysOffset + b.devOffset
}
