package testharness

import (
	"time"

	"github.com/cpc-protocol/cpcd-go/pkg/eventloop"
)

// ManualTimers implements eventloop.TimerService with explicitly advanced
// time, so retry and timeout behavior is tested deterministically.
type ManualTimers struct {
	now    time.Duration
	timers []*manualTimer
}

// NewManualTimers creates a timer service at time zero.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{}
}

type manualTimer struct {
	svc      *ManualTimers
	fn       func()
	deadline time.Duration
	armed    bool
}

// AfterFunc arms a one-shot timer relative to the current manual time.
func (m *ManualTimers) AfterFunc(d time.Duration, fn func()) eventloop.Timer {
	t := &manualTimer{svc: m, fn: fn, deadline: m.now + d, armed: true}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Reset(d time.Duration) {
	t.deadline = t.svc.now + d
	t.armed = true
}

func (t *manualTimer) Stop() {
	t.armed = false
}

// Advance moves time forward, firing due timers in deadline order. Timers
// armed by a firing callback participate if they also come due.
func (m *ManualTimers) Advance(d time.Duration) {
	target := m.now + d
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.deadline
		next.armed = false
		next.fn()
	}
	m.now = target
}

// nextDue returns the armed timer with the earliest deadline at or before
// target, or nil.
func (m *ManualTimers) nextDue(target time.Duration) *manualTimer {
	var next *manualTimer
	for _, t := range m.timers {
		if !t.armed || t.deadline > target {
			continue
		}
		if next == nil || t.deadline < next.deadline {
			next = t
		}
	}
	return next
}

// Armed returns the number of armed timers.
func (m *ManualTimers) Armed() int {
	var n int
	for _, t := range m.timers {
		if t.armed {
			n++
		}
	}
	return n
}

// Compile-time interface satisfaction check.
var _ eventloop.TimerService = (*ManualTimers)(nil)
