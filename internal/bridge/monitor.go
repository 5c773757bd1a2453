package bridge

import (
	"time"

	"github.com/benbjohnson/clock"
)

// State is the freshness of the published data.
type State int

const (
	// Fresh means a valid measurement arrived within the timeout.
	Fresh State = iota
	// Stale means the timeout passed without one.
	Stale
)

func (s State) String() string {
	if s == Stale {
		return "stale"
	}
	return "fresh"
}

// Monitor tracks how long ago the last valid measurement was accepted.
// It starts Fresh with the clock set to its creation time, which gives a
// newly opened connection a full timeout window before it counts as stale.
type Monitor struct {
	clock    clock.Clock
	timeout  time.Duration
	lastGood time.Time
	state    State
}

// NewMonitor returns a Monitor using clk and timeout.
func NewMonitor(clk clock.Clock, timeout time.Duration) *Monitor {
	return &Monitor{
		clock:    clk,
		timeout:  timeout,
		lastGood: clk.Now(),
		state:    Fresh,
	}
}

// Accept records a valid measurement and reports whether it ended a Stale period.
func (m *Monitor) Accept(meas Measurement) bool {
	if meas.At.After(m.lastGood) {
		m.lastGood = meas.At
	}
	recovered := m.state == Stale
	m.state = Fresh
	return recovered
}

// Expired reports whether more than the timeout has passed since the last
// valid measurement or Reset.
func (m *Monitor) Expired() bool {
	return m.clock.Since(m.lastGood) > m.timeout
}

// MarkStale moves the monitor to Stale and reports whether it was Fresh before.
func (m *Monitor) MarkStale() bool {
	if m.state == Stale {
		return false
	}
	m.state = Stale
	return true
}

// Reset restarts the timeout window from now without changing the state.
func (m *Monitor) Reset() {
	m.lastGood = m.clock.Now()
}

// State returns the current freshness state.
func (m *Monitor) State() State {
	return m.state
}

// LastGood returns the time the current window started.
func (m *Monitor) LastGood() time.Time {
	return m.lastGood
}

// Timeout returns the staleness threshold.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}
