package seatselect

import (
	"context"
	"time"
)

// PollIntervals is the adaptive refresh schedule: Active while the user is
// interacting, Idle once IdleAfter has passed without interaction.
type PollIntervals struct {
	Active    time.Duration
	Idle      time.Duration
	IdleAfter time.Duration
}

var DefaultPollIntervals = PollIntervals{
	Active:    3 * time.Second,
	Idle:      10 * time.Second,
	IdleAfter: 10 * time.Second,
}

// Next returns the delay before the next refresh given the time since the
// last interaction.
func (p PollIntervals) Next(sinceInteraction time.Duration) time.Duration {
	if sinceInteraction > p.IdleAfter {
		return p.Idle
	}
	return p.Active
}

// Poller calls refresh on the adaptive schedule until its context ends.
// Kick restarts the wait after an interaction so the fast interval takes
// effect at once.
type Poller struct {
	intervals       PollIntervals
	refresh         func(context.Context)
	lastInteraction func() time.Time
	now             func() time.Time
	kick            chan struct{}
}

func NewPoller(intervals PollIntervals, refresh func(context.Context), lastInteraction func() time.Time) *Poller {
	return &Poller{
		intervals:       intervals,
		refresh:         refresh,
		lastInteraction: lastInteraction,
		now:             time.Now,
		kick:            make(chan struct{}, 1),
	}
}

// Kick never blocks.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		d := p.intervals.Next(p.now().Sub(p.lastInteraction()))
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-p.kick:
			t.Stop()
		case <-t.C:
			p.refresh(ctx)
		}
	}
}
