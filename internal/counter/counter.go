// Package counter keeps a live "matching profiles" count for a job filter.
//
// Every SetFilter restarts a quiet period; when it expires one cycle runs:
//
//	guard IDLE? ─no─► skip
//	  │yes
//	credentials? skills table (if needed)? ─no─► skip, release
//	  │yes
//	fetch (FETCHING) ──► newest result wins ──► IDLE
//
// Skipped cycles are not queued. A response that started before the last
// applied one is dropped.
package counter

import (
	"context"
	"errors"
	"sync"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/pkg/flight"

	"github.com/rs/zerolog"
)

const (
	DefaultDelay   = 500 * time.Millisecond
	DefaultTimeout = 10 * time.Second
)

type Fetcher interface {
	FetchMatchingCount(ctx context.Context, creds auth.Credentials, params map[string]string) (int, error)
}

// SkillTable resolves skill names to the canonical form the count endpoint
// expects. *lookup.Store satisfies it.
type SkillTable interface {
	Ready() bool
	Canonical(name string) string
}

// Result is the outcome of one successful fetch.
type Result struct {
	Count  int       `json:"count"`
	Filter Filter    `json:"filter"`
	Seq    uint64    `json:"seq"`
	At     time.Time `json:"at"`
}

// Snapshot is what the UI renders: the current count, the last good value
// to show while loading or after a failure, and whether a fetch is running.
type Snapshot struct {
	Count    int     `json:"count"`
	LastGood int     `json:"last_good"`
	Fetching bool    `json:"fetching"`
	Err      error   `json:"-"`
	Error    string  `json:"error,omitempty"`
	Filter   Filter  `json:"filter"`
	Seq      uint64  `json:"seq"`
	Result   *Result `json:"result,omitempty"`
}

type Options struct {
	Delay     time.Duration
	Timeout   time.Duration
	AfterFunc flight.AfterFunc
	Logger    zerolog.Logger
	Now       func() time.Time
}

type Counter struct {
	fetcher Fetcher
	skills  SkillTable
	creds   auth.Provider
	opts    Options
	logger  zerolog.Logger

	debounce *flight.Debouncer
	guard    flight.Guard
	seq      flight.Sequence

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	filter      Filter
	count       int
	lastGood    int
	err         error
	result      *Result
	closed      bool
	waitingDeps bool
	subs        map[int]func(Snapshot)
	nextSub     int
}

func New(fetcher Fetcher, skills SkillTable, creds auth.Provider, opts Options) *Counter {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Counter{
		fetcher: fetcher,
		skills:  skills,
		creds:   creds,
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "counter").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		filter:  Filter{},
		subs:    make(map[int]func(Snapshot)),
	}
	c.debounce = flight.NewDebouncer(opts.Delay, opts.AfterFunc, c.cycle)
	return c
}

// SetFilter merges patch into the current filter and restarts the quiet
// period. The fetch uses the filter as of the moment the timer fires.
func (c *Counter) SetFilter(patch Patch) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.filter = c.filter.Merge(patch)
	c.mu.Unlock()

	c.debounce.Trigger()
}

// Refresh schedules a cycle without changing the filter.
func (c *Counter) Refresh() {
	c.debounce.Trigger()
}

// DependenciesReady is called when the skill table is published. It retries
// a cycle that was skipped for lack of it.
func (c *Counter) DependenciesReady() {
	c.mu.Lock()
	retry := c.waitingDeps && !c.closed
	c.waitingDeps = false
	c.mu.Unlock()
	if retry {
		c.debounce.Trigger()
	}
}

// Count is the last resolved count: 0 before the first fetch and after a
// failed one.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Counter) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.Clone()
}

func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe calls fn on every fetch start and end. fn runs outside the
// counter's lock and must not block for long.
func (c *Counter) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close stops the timer and cancels the fetch in flight. Responses that
// arrive afterwards are ignored.
func (c *Counter) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = map[int]func(Snapshot){}
	c.mu.Unlock()

	c.debounce.Stop()
	c.cancel()
}

func (c *Counter) cycle() {
	if !c.guard.TryAcquire() {
		c.logger.Debug().Msg("cycle skipped: fetch in flight")
		return
	}
	handedOff := false
	defer func() {
		if !handedOff {
			c.release()
		}
	}()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	filter := c.filter.Clone()
	c.mu.Unlock()

	creds, ok := auth.Resolve(c.ctx, c.creds)
	if !ok {
		c.logger.Debug().Err(apperr.ErrMissingCredentials).Msg("cycle skipped")
		return
	}

	var canonical func(string) string
	if filter.ReferencesSkills() {
		if c.skills == nil || !c.skills.Ready() {
			c.mu.Lock()
			c.waitingDeps = true
			c.mu.Unlock()
			c.logger.Debug().Err(apperr.ErrDependencyNotReady).Msg("cycle skipped")
			return
		}
		canonical = c.skills.Canonical
	}
	params := Params(filter, canonical)

	seq := c.seq.Next()
	handedOff = true
	c.notify()
	go c.fetch(seq, filter, params, creds)
}

func (c *Counter) fetch(seq uint64, filter Filter, params map[string]string, creds auth.Credentials) {
	released := false
	defer func() {
		if !released {
			c.release()
		}
	}()

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.Timeout)
	n, err := c.fetcher.FetchMatchingCount(ctx, creds, params)
	cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.seq.Accept(seq) {
		c.mu.Unlock()
		c.logger.Debug().Uint64("seq", seq).Msg("stale count dropped")
		return
	}
	if err != nil {
		c.count = 0
		c.err = err
	} else {
		c.count = n
		c.lastGood = n
		c.err = nil
		c.result = &Result{Count: n, Filter: filter, Seq: seq, At: c.opts.Now()}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Strs("filters", filter.Keys()).Msg("count fetch failed")
	} else {
		c.logger.Debug().Int("count", n).Uint64("seq", seq).Msg("count updated")
	}

	released = true
	c.release()
	c.notify()
}

func (c *Counter) release() {
	if err := c.guard.Release(); err != nil {
		c.logger.Error().Err(err).Msg("guard release")
	}
}

func (c *Counter) notify() {
	c.mu.Lock()
	if c.closed || len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Counter) snapshotLocked() Snapshot {
	s := Snapshot{
		Count:    c.count,
		LastGood: c.lastGood,
		Fetching: c.guard.State() == flight.StateFetching,
		Err:      c.err,
		Filter:   c.filter.Clone(),
		Seq:      c.seq.Accepted(),
	}
	if c.err != nil {
		s.Error = errorMessage(c.err)
	}
	if c.result != nil {
		r := *c.result
		r.Filter = r.Filter.Clone()
		s.Result = &r
	}
	return s
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNetwork):
		return "count unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "count timed out"
	default:
		return err.Error()
	}
}
