package sched

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("loop stopped")

// Loop owns the single logical thread of the service. Commands submitted from
// transport goroutines and timer firings all run inside Run.
type Loop struct {
	resolution time.Duration
	clock      func() time.Time

	inbox chan func()
	done  chan struct{}

	ts  timers
	now time.Time
}

// NewLoop checks timers every resolution. Timers therefore fire at most one
// resolution late.
func NewLoop(resolution time.Duration, clock func() time.Time) *Loop {
	if resolution <= 0 {
		resolution = 50 * time.Millisecond
	}
	if clock == nil {
		clock = time.Now
	}
	return &Loop{
		resolution: resolution,
		clock:      clock,
		inbox:      make(chan func(), 1024),
		done:       make(chan struct{}),
		now:        clock(),
	}
}

// Now must only be called from inside the loop (timer bodies, submitted
// commands) or before Run starts.
func (l *Loop) Now() time.Time { return l.now }

func (l *Loop) Every(period time.Duration, fn Task) Handle {
	return l.ts.add(l.now, period, fn)
}

// Submit queues fn for execution on the loop. It blocks while the inbox is
// full and fails once the loop has stopped.
func (l *Loop) Submit(ctx context.Context, fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Submit(ctx, func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.resolution)
	defer ticker.Stop()
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case fn := <-l.inbox:
			l.now = l.clock()
			fn()
		case <-ticker.C:
			l.step(l.clock())
		}
	}
}

// step fires every timer due at or before now.
func (l *Loop) step(now time.Time) {
	for {
		t := l.ts.nextDue(now)
		if t == nil {
			break
		}
		l.now = t.next
		l.ts.fire(t)
	}
	l.now = now
}

// drain runs commands that were accepted before shutdown.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.inbox:
			l.now = l.clock()
			fn()
		default:
			return
		}
	}
}

func (l *Loop) Pending() int { return l.ts.live() }
