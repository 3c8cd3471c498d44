package watcher

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

const testDelay = 300 * time.Millisecond

// counter returns a callback that signals on fired, and the channel.
func counter() (func(), chan struct{}) {
	fired := make(chan struct{}, 16)
	return func() { fired <- struct{}{} }, fired
}

func expectFire(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debounced callback did not fire")
	}
}

func expectNoFire(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("debounced callback fired unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncer_SingleTrigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, fired := counter()
	d := NewDebouncer(clock, testDelay, fn)

	d.Trigger()
	if !d.Pending() {
		t.Fatal("Pending() = false after Trigger")
	}

	clock.Advance(testDelay - time.Millisecond)
	expectNoFire(t, fired)

	clock.Advance(time.Millisecond)
	expectFire(t, fired)
	expectNoFire(t, fired)
}

func TestDebouncer_BurstCollapses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, fired := counter()
	d := NewDebouncer(clock, testDelay, fn)

	// ten edits, 50ms apart: all inside one window
	for i := 0; i < 10; i++ {
		d.Trigger()
		clock.Advance(50 * time.Millisecond)
	}
	expectNoFire(t, fired)

	// last trigger was 50ms ago; fires 300ms after it
	clock.Advance(testDelay - 50*time.Millisecond - time.Millisecond)
	expectNoFire(t, fired)

	clock.Advance(time.Millisecond)
	expectFire(t, fired)
	expectNoFire(t, fired)
}

// A save at t=0 and another at t=100 must produce a single reload at
// t>=400, never at t=300 (timed from the first event).
func TestDebouncer_TimedFromLastEvent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, fired := counter()
	d := NewDebouncer(clock, testDelay, fn)

	d.Trigger()
	clock.Advance(100 * time.Millisecond)
	d.Trigger()

	clock.Advance(200 * time.Millisecond) // t=300: first event's deadline
	expectNoFire(t, fired)

	clock.Advance(100 * time.Millisecond) // t=400
	expectFire(t, fired)
	expectNoFire(t, fired)
}

func TestDebouncer_SeparateBurstsFireSeparately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, fired := counter()
	d := NewDebouncer(clock, testDelay, fn)

	d.Trigger()
	clock.Advance(testDelay)
	expectFire(t, fired)

	d.Trigger()
	clock.Advance(testDelay)
	expectFire(t, fired)
}

func TestDebouncer_Stop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, fired := counter()
	d := NewDebouncer(clock, testDelay, fn)

	d.Trigger()
	d.Stop()
	if d.Pending() {
		t.Error("Pending() = true after Stop")
	}

	clock.Advance(testDelay * 2)
	expectNoFire(t, fired)

	d.Trigger()
	clock.Advance(testDelay * 2)
	expectNoFire(t, fired)
}
