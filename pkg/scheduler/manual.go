package scheduler

import (
	"sort"
	"sync"
	"time"
)

var _ Scheduler = &Manual{}

// Manual is a Scheduler driven by a virtual clock. Nothing fires until
// Advance is called. It is meant for tests.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	last    Handle
	pending map[Handle]manualEntry
}

type manualEntry struct {
	at time.Time
	fn func()
}

// NewManual returns a Manual whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:     start,
		pending: make(map[Handle]manualEntry),
	}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Schedule(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last++
	m.pending[m.last] = manualEntry{at: m.now.Add(d), fn: fn}
	return m.last
}

func (m *Manual) Cancel(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, h)
}

// Len returns the number of pending runs.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// FireAt returns when h is due, and whether it is still pending.
func (m *Manual) FireAt(h Handle) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[h]
	return e.at, ok
}

// Advance moves the clock forward by d and runs every callback that
// became due, in fire-time order, on the calling goroutine. Callbacks
// scheduled while advancing also run if they fall within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		h, e, ok := m.earliestLocked(target)
		if !ok {
			m.now = target
			m.mu.Unlock()
			return
		}
		delete(m.pending, h)
		m.now = e.at
		m.mu.Unlock()

		e.fn()
	}
}

func (m *Manual) earliestLocked(until time.Time) (Handle, manualEntry, bool) {
	handles := make([]Handle, 0, len(m.pending))
	for h, e := range m.pending {
		if !e.at.After(until) {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return 0, manualEntry{}, false
	}
	sort.Slice(handles, func(i, j int) bool {
		ei, ej := m.pending[handles[i]], m.pending[handles[j]]
		if ei.at.Equal(ej.at) {
			return handles[i] < handles[j]
		}
		return ei.at.Before(ej.at)
	})
	return handles[0], m.pending[handles[0]], true
}
