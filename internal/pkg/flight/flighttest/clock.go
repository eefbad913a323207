// Package flighttest provides a manual clock for debounce tests.
package flighttest

import (
	"sort"
	"sync"
	"time"

	"profile-forms/internal/pkg/flight"
)

type timer struct {
	clock   *Clock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Clock is a virtual time source. Callbacks run synchronously inside Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*timer
}

func NewClock() *Clock { return &Clock{} }

// AfterFunc matches flight.AfterFunc.
func (c *Clock) AfterFunc(d time.Duration, f func()) flight.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d and fires every due timer in order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	now := c.now
	var due []*timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

// Pending counts armed timers.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
