// Package activity tracks whether the application is foregrounded and
// whether the user interacted recently. It emits a coarse presence state
// consumed only by the refresh scheduler to pick a cadence.
package activity

import (
	"sync"
	"time"
)

// Presence is the coarse state the scheduler keys its cadence on.
type Presence string

const (
	// PresenceActive: tab visible and the user interacted within the idle
	// window.
	PresenceActive Presence = "active"

	// PresenceIdle: tab visible but no interaction within the idle window.
	PresenceIdle Presence = "idle"

	// PresenceBackground: tab not visible.
	PresenceBackground Presence = "background"
)

// Listener receives presence transitions.
type Listener func(Presence)

const defaultIdleWindow = 90 * time.Second

// Monitor debounces raw visibility/interaction signals into Presence. The
// idle window is the only hysteresis in the pipeline; the scheduler adds
// none of its own.
type Monitor struct {
	mu         sync.Mutex
	idleWindow time.Duration
	now        func() time.Time

	visible     bool
	lastTouch   time.Time
	current     Presence
	lastEmitted Presence

	idleTimer *time.Timer
	closed    bool

	nextListener int
	listeners    map[int]Listener
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithNow overrides the clock. Test hook.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMonitor creates a monitor that starts visible and active.
func NewMonitor(idleWindow time.Duration, opts ...Option) *Monitor {
	if idleWindow <= 0 {
		idleWindow = defaultIdleWindow
	}
	m := &Monitor{
		idleWindow: idleWindow,
		now:        time.Now,
		visible:    true,
		listeners:  make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastTouch = m.now()
	m.current = PresenceActive
	m.lastEmitted = PresenceActive
	m.armIdleTimerLocked()
	return m
}

// Subscribe registers a listener and returns its unregister function.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Presence returns the current coarse state.
func (m *Monitor) Presence() Presence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetVisible records a foreground/background change.
func (m *Monitor) SetVisible(visible bool) {
	m.mu.Lock()
	if m.closed || m.visible == visible {
		m.mu.Unlock()
		return
	}
	m.visible = visible
	if visible {
		// Coming back to the foreground counts as an interaction.
		m.lastTouch = m.now()
	}
	m.recomputeLocked()
	listeners, state, changed := m.emitStateLocked()
	m.mu.Unlock()

	notify(listeners, state, changed)
}

// Touch records a user interaction.
func (m *Monitor) Touch() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.lastTouch = m.now()
	m.recomputeLocked()
	listeners, state, changed := m.emitStateLocked()
	m.mu.Unlock()

	notify(listeners, state, changed)
}

// Close stops the idle timer. Listeners receive nothing afterwards.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
}

// recomputeLocked derives the presence from the raw signals and re-arms
// the idle timer when needed.
func (m *Monitor) recomputeLocked() {
	switch {
	case !m.visible:
		m.current = PresenceBackground
	case m.now().Sub(m.lastTouch) < m.idleWindow:
		m.current = PresenceActive
		m.armIdleTimerLocked()
	default:
		m.current = PresenceIdle
	}
}

// armIdleTimerLocked schedules the active->idle transition.
func (m *Monitor) armIdleTimerLocked() {
	if m.closed {
		return
	}
	remaining := m.idleWindow - m.now().Sub(m.lastTouch)
	if remaining < 0 {
		remaining = 0
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(remaining, m.idleTimerFired)
}

func (m *Monitor) idleTimerFired() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.recomputeLocked()
	listeners, state, changed := m.emitStateLocked()
	m.mu.Unlock()

	notify(listeners, state, changed)
}

// emitStateLocked snapshots the listeners when the presence changed since
// the last emit. prev tracking lives in lastEmitted.
func (m *Monitor) emitStateLocked() ([]Listener, Presence, bool) {
	if m.current == m.lastEmitted {
		return nil, m.current, false
	}
	m.lastEmitted = m.current
	out := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out, m.current, true
}

// notify invokes listeners outside the lock.
func notify(listeners []Listener, state Presence, changed bool) {
	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(state)
	}
}
