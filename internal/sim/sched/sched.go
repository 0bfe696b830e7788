// Package sched provides the cancellable repeating timers that drive teleport
// countdowns and periodic maintenance. Every timer body runs on the goroutine
// that advances the scheduler, so timer bodies and submitted commands never
// overlap.
package sched

import "time"

// Task is a timer body. now is the scheduler time of the firing.
type Task func(now time.Time)

// Handle stops a repeating timer. Cancel is idempotent and takes effect
// immediately: a cancelled timer never fires again, even if it was due.
type Handle interface {
	Cancel()
	Cancelled() bool
}

type Scheduler interface {
	Now() time.Time
	// Every fires fn every period, the first time one period from now.
	Every(period time.Duration, fn Task) Handle
}

type timer struct {
	seq       uint64
	period    time.Duration
	next      time.Time
	fn        Task
	cancelled bool
}

func (t *timer) Cancel()         { t.cancelled = true }
func (t *timer) Cancelled() bool { return t.cancelled }

// timers is the shared bookkeeping behind Manual and Loop.
type timers struct {
	seq  uint64
	list []*timer
}

func (ts *timers) add(now time.Time, period time.Duration, fn Task) *timer {
	if period <= 0 {
		period = time.Second
	}
	ts.seq++
	t := &timer{seq: ts.seq, period: period, next: now.Add(period), fn: fn}
	ts.list = append(ts.list, t)
	return t
}

// nextDue returns the earliest live timer due at or before limit.
func (ts *timers) nextDue(limit time.Time) *timer {
	ts.compact()
	var best *timer
	for _, t := range ts.list {
		if t.next.After(limit) {
			continue
		}
		if best == nil || t.next.Before(best.next) || (t.next.Equal(best.next) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// fire runs t and schedules its next firing.
func (ts *timers) fire(t *timer) {
	at := t.next
	t.next = at.Add(t.period)
	t.fn(at)
}

func (ts *timers) compact() {
	live := ts.list[:0]
	for _, t := range ts.list {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(ts.list); i++ {
		ts.list[i] = nil
	}
	ts.list = live
}

func (ts *timers) live() int {
	ts.compact()
	return len(ts.list)
}
