package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T) *Loop {
	t.Helper()

	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)
	return l
}

func TestPostExecutesInOrder(t *testing.T) {
	l := runLoop(t)

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Post(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not drain")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestPostAfterStop(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(loopDone)
	}()

	cancel()
	<-loopDone

	require.ErrorIs(t, l.Post(func() {}), ErrLoopStopped)
}

func TestAfterFuncFiresOnLoop(t *testing.T) {
	l := runLoop(t)

	fired := make(chan struct{})
	require.NoError(t, l.Post(func() {
		l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerStopDiscardsExpiration(t *testing.T) {
	l := runLoop(t)

	var fired bool
	done := make(chan struct{})
	require.NoError(t, l.Post(func() {
		tm := l.AfterFunc(10*time.Millisecond, func() { fired = true })
		tm.Stop()
	}))

	// Give the (stopped) timer time to have fired if Stop were broken.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Post(func() { close(done) }))
	<-done
	assert.False(t, fired)
}

func TestTimerReset(t *testing.T) {
	l := runLoop(t)

	fired := make(chan struct{})
	require.NoError(t, l.Post(func() {
		tm := l.AfterFunc(time.Hour, func() { close(fired) })
		tm.Reset(10 * time.Millisecond)
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("reset timer did not fire")
	}
}
