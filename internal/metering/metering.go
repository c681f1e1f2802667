// Package metering enforces the per-device daily cap on spoken characters.
//
// Every synthesized segment is charged against the device that will hear it.
// Counters reset at local midnight. When a device reaches its cap the dialog
// layer stops synthesizing and speaks the configured end prompt instead.
package metering

import (
	"sync"
	"time"
)

// Meter tracks spoken characters per device per calendar day. The zero value
// is not usable; use [New]. Safe for concurrent use.
type Meter struct {
	// now is swappable for tests.
	now func() time.Time

	mu    sync.Mutex
	limit int
	day   string
	spent map[string]int
}

// New returns a meter with the given daily character limit. A limit of zero
// or less disables metering entirely.
func New(limit int) *Meter {
	return &Meter{
		now:   time.Now,
		limit: limit,
		spent: make(map[string]int),
	}
}

// Charge records n spoken characters for deviceID and reports whether the
// device is still within its daily budget after the charge. The charge is
// applied even when it crosses the limit, so a long sentence cannot be
// replayed to sneak under the cap.
func (m *Meter) Charge(deviceID string, n int) bool {
	if m.limit <= 0 {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	m.spent[deviceID] += n
	return m.spent[deviceID] <= m.limit
}

// Remaining returns how many characters deviceID may still speak today.
// Returns -1 when metering is disabled.
func (m *Meter) Remaining(deviceID string) int {
	if m.limit <= 0 {
		return -1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	left := m.limit - m.spent[deviceID]
	if left < 0 {
		return 0
	}
	return left
}

// Exhausted reports whether deviceID has reached its cap for today.
func (m *Meter) Exhausted(deviceID string) bool {
	return m.Remaining(deviceID) == 0
}

// rollover drops all counters when the calendar day has changed. Caller must
// hold mu.
func (m *Meter) rollover() {
	today := m.now().Format(time.DateOnly)
	if m.day != today {
		m.day = today
		clear(m.spent)
	}
}
