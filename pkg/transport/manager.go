package transport

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zurustar/midiseq/internal/logging"
)

var log = logging.For("transport")

// Manager is an explicitly-constructed registry of tick Components,
// never a package-level singleton. It owns the Clock that drives
// dispatch, keeps components sorted by Priority with insertion order as
// the tiebreak, and enforces that at most one PRSeq component is
// registered at a time.
type Manager struct {
	mu         sync.Mutex
	clock      *Clock
	components []Component
	seq        Component
}

// NewManager returns a Manager driven by clock, installing its dispatch
// as the clock's tick callback.
func NewManager(clock *Clock) *Manager {
	m := &Manager{clock: clock}
	clock.onTick = m.dispatch
	return m
}

// AddTick registers c. Adding a component already present is a no-op.
// A new PRSeq component replaces any existing one.
func (m *Manager) AddTick(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.components {
		if existing == c {
			return
		}
	}
	if c.Priority() == PRSeq {
		if m.seq != nil {
			log.Info("replacing PRSeq component")
			m.removeLocked(m.seq)
		}
		m.seq = c
	}
	m.components = append(m.components, c)
	sort.SliceStable(m.components, func(i, j int) bool {
		return m.components[i].Priority() < m.components[j].Priority()
	})
}

// RemoveTick unregisters c, returning false if it was not present.
func (m *Manager) RemoveTick(c Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(c)
}

func (m *Manager) removeLocked(c Component) bool {
	for i, existing := range m.components {
		if existing == c {
			m.components = append(m.components[:i], m.components[i+1:]...)
			if m.seq == c {
				m.seq = nil
			}
			return true
		}
	}
	return false
}

// dispatch is the Clock's callback: under the coarse lock, run every
// running component's Tick in ascending priority order. Components at
// the same priority tick concurrently via errgroup so one
// slow component cannot delay its priority-mates; priority ordering
// itself is still respected between groups.
func (m *Manager) dispatch(sysTimeMs uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := append([]Component(nil), m.components...)

	i := 0
	for i < len(snapshot) {
		j := i
		prio := snapshot[i].Priority()
		for j < len(snapshot) && snapshot[j].Priority() == prio {
			j++
		}
		group := snapshot[i:j]
		var g errgroup.Group
		for _, c := range group {
			c := c
			if !c.Running() {
				continue
			}
			g.Go(func() error {
				c.Tick(sysTimeMs)
				return nil
			})
		}
		_ = g.Wait()
		i = j
	}
}

// AllNotesOff asks every registered component that can to silence its
// output (used on emergency stop / panic button).
func (m *Manager) AllNotesOff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.components {
		if silencer, ok := c.(interface{ AllNotesOff() }); ok {
			silencer.AllNotesOff()
		}
	}
}

// Clock returns the Clock this Manager dispatches from.
func (m *Manager) Clock() *Clock { return m.clock }
