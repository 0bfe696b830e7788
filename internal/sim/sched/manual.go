package sched

import "time"

// Manual is a scheduler whose clock only moves when Advance is called.
type Manual struct {
	now time.Time
	ts  timers
}

func NewManual(start time.Time) *Manual { return &Manual{now: start} }

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) Every(period time.Duration, fn Task) Handle {
	return m.ts.add(m.now, period, fn)
}

// Advance moves the clock forward by d, firing due timers in time order.
// The clock reads the firing time while each timer body runs.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		t := m.ts.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.next
		m.ts.fire(t)
	}
	m.now = target
}

// Pending is the number of live timers.
func (m *Manual) Pending() int { return m.ts.live() }
