// Package clock provides the time source shared by the simulation services.
// Production code runs on Real; tests and replays drive a Manual clock so that
// "simulated seconds" are deterministic.
package clock

import (
	"sync"
	"time"
)

// DateLayout is the calendar-day key used for daily rollovers.
const DateLayout = "2006-01-02"

// Clock reports the current simulated time.
type Clock interface {
	Now() time.Time
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t. Moving backwards is allowed; callers that care
// about monotonic time should only Advance.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Date returns the calendar-day key for t in t's location.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}
