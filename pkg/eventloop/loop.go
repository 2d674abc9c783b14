package eventloop

import (
	"context"
	"errors"
	"time"
)

// ErrLoopStopped indicates a post to a loop that has already exited.
var ErrLoopStopped = errors.New("event loop stopped")

// Loop is a single-goroutine run loop. Functions posted to it execute
// sequentially in posting order.
type Loop struct {
	fns  chan func()
	done chan struct{}
}

// New creates a loop. Run must be called for posted functions to execute.
func New() *Loop {
	return &Loop{
		fns:  make(chan func(), 256),
		done: make(chan struct{}),
	}
}

// Run executes posted functions until ctx is cancelled. It must be called
// exactly once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.fns:
			fn()
		}
	}
}

// Post schedules fn to run on the loop. Safe to call from any goroutine.
// Returns ErrLoopStopped once Run has exited.
func (l *Loop) Post(fn func()) error {
	// Checked first so a post after shutdown fails even when the queue
	// has room.
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case <-l.done:
		return ErrLoopStopped
	case l.fns <- fn:
		return nil
	}
}

// Timer is a one-shot timer handle. Reset and Stop must be called on the
// loop.
type Timer interface {
	// Reset re-arms the timer with a new interval.
	Reset(d time.Duration)

	// Stop disarms the timer. A pending expiration that has not yet run
	// is discarded.
	Stop()
}

// TimerService creates one-shot timers whose callbacks run on the loop.
// It is the narrow interface the protocol core consumes, so tests can
// substitute a manual implementation.
type TimerService interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// AfterFunc arms a one-shot timer. The callback runs on the loop after at
// least d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{loop: l, fn: fn}
	lt.t = time.AfterFunc(d, func() {
		// Hop onto the loop; the stopped check happens there so a
		// Stop racing the expiration wins.
		_ = l.Post(lt.fire)
	})
	return lt
}

type loopTimer struct {
	loop    *Loop
	fn      func()
	t       *time.Timer
	stopped bool
}

func (lt *loopTimer) fire() {
	if lt.stopped {
		return
	}
	lt.fn()
}

func (lt *loopTimer) Reset(d time.Duration) {
	lt.stopped = false
	lt.t.Reset(d)
}

func (lt *loopTimer) Stop() {
	lt.stopped = true
	lt.t.Stop()
}

// Compile-time interface satisfaction check.
var _ TimerService = (*Loop)(nil)
