package flight_test

import (
	"sync/atomic"
	"testing"
	"time"

	"profile-forms/internal/pkg/flight"
	"profile-forms/internal/pkg/flight/flighttest"
)

func TestDebouncer_CollapsesBurst(t *testing.T) {
	clock := flighttest.NewClock()
	var runs atomic.Int32
	d := flight.NewDebouncer(500*time.Millisecond, clock.AfterFunc, func() { runs.Add(1) })

	d.Trigger()
	clock.Advance(200 * time.Millisecond)
	d.Trigger()
	clock.Advance(200 * time.Millisecond)
	d.Trigger()

	if runs.Load() != 0 {
		t.Fatalf("expected no run inside the burst, got %d", runs.Load())
	}
	clock.Advance(500 * time.Millisecond)
	if runs.Load() != 1 {
		t.Fatalf("expected exactly one run, got %d", runs.Load())
	}
	if d.Pending() {
		t.Fatalf("expected nothing pending after fire")
	}
}

func TestDebouncer_StopCancels(t *testing.T) {
	clock := flighttest.NewClock()
	var runs atomic.Int32
	d := flight.NewDebouncer(time.Second, clock.AfterFunc, func() { runs.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	clock.Advance(2 * time.Second)
	if runs.Load() != 0 {
		t.Fatalf("expected no run after stop, got %d", runs.Load())
	}
}

func TestGuard_Transitions(t *testing.T) {
	var g flight.Guard
	if g.State() != flight.StateIdle {
		t.Fatalf("expected IDLE, got %s", g.State())
	}
	if !g.TryAcquire() {
		t.Fatalf("expected first acquire to succeed")
	}
	if g.TryAcquire() {
		t.Fatalf("expected second acquire to fail while FETCHING")
	}
	if err := g.Release(); err != nil {
		t.Fatalf("unexpected release err: %v", err)
	}
	if err := g.Release(); err == nil {
		t.Fatalf("expected releasing an idle guard to fail")
	}
	if !g.TryAcquire() {
		t.Fatalf("expected acquire after release to succeed")
	}
}

func TestIsTransitionAllowed(t *testing.T) {
	if !flight.IsTransitionAllowed(flight.StateIdle, flight.StateFetching) {
		t.Fatalf("IDLE -> FETCHING must be allowed")
	}
	if flight.IsTransitionAllowed(flight.StateIdle, flight.StateIdle) {
		t.Fatalf("IDLE -> IDLE must not be allowed")
	}
}

func TestSequence_DropsStale(t *testing.T) {
	var s flight.Sequence
	first := s.Next()
	second := s.Next()

	if !s.Accept(second) {
		t.Fatalf("expected newest result to be accepted")
	}
	if s.Accept(first) {
		t.Fatalf("expected older result to be dropped")
	}
	if s.Accept(second) {
		t.Fatalf("expected duplicate to be dropped")
	}
	if s.Accept(99) {
		t.Fatalf("expected never-issued tag to be dropped")
	}
	if s.Accepted() != second {
		t.Fatalf("expected accepted=%d, got %d", second, s.Accepted())
	}
}
