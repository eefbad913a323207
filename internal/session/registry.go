package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/counter"
	"profile-forms/internal/infrastructure/upstream"
	"profile-forms/internal/lookup"
	"profile-forms/internal/pkg/flight"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Upstream is everything a workspace calls on the upstream API.
type Upstream interface {
	lookup.Source
	counter.Fetcher
	upstream.ResourceAPI
}

// Credentials hands out a per-user provider. *credstore.Store satisfies it.
type Credentials interface {
	Provider(userID string) auth.Provider
}

type Config struct {
	CountDebounce time.Duration
	CountTimeout  time.Duration
	LookupTTL     time.Duration
	IdleTTL       time.Duration
	// SweepSpec is a cron spec such as "@every 1m".
	SweepSpec string
	// AfterFunc overrides the debounce timer source.
	AfterFunc flight.AfterFunc
}

type Registry struct {
	upstream Upstream
	cache    lookup.Cache
	creds    Credentials
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	spaces  map[string]*Workspace
	closed  bool
	onOpen  []func(*Workspace)
	onClose []func(userID string)

	cron *cron.Cron
}

func NewRegistry(up Upstream, cache lookup.Cache, creds Credentials, cfg Config, logger zerolog.Logger) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 1m"
	}
	return &Registry{
		upstream: up,
		cache:    cache,
		creds:    creds,
		cfg:      cfg,
		logger:   logger.With().Str("component", "session").Logger(),
		now:      time.Now,
		spaces:   make(map[string]*Workspace),
	}
}

// OnOpen registers fn to run for every new workspace. Register hooks
// before serving traffic.
func (r *Registry) OnOpen(fn func(*Workspace)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOpen = append(r.onOpen, fn)
}

// OnClose registers fn to run after a workspace was closed.
func (r *Registry) OnClose(fn func(userID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = append(r.onClose, fn)
}

// Open returns the user's workspace, creating it on first use.
func (r *Registry) Open(userID string) (*Workspace, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperr.ErrInvalidInput)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, apperr.ErrClosed
	}
	if w, ok := r.spaces[userID]; ok {
		r.mu.Unlock()
		w.touch()
		return w, nil
	}

	w := newWorkspace(workspaceDeps{
		userID:   userID,
		upstream: r.upstream,
		cache:    r.cache,
		creds:    r.creds.Provider(userID),
		cfg:      r.cfg,
		logger:   r.logger,
		now:      r.now,
	})
	r.spaces[userID] = w
	hooks := append([]func(*Workspace){}, r.onOpen...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(w)
	}
	r.logger.Info().Str("user_id", userID).Msg("workspace opened")
	return w, nil
}

func (r *Registry) closeAll(spaces []*Workspace) {
	r.mu.Lock()
	hooks := append([]func(string){}, r.onClose...)
	r.mu.Unlock()

	for _, w := range spaces {
		w.Close()
		for _, fn := range hooks {
			fn(w.UserID)
		}
	}
}

// Acquire opens the workspace and makes sure it has loaded.
func (r *Registry) Acquire(ctx context.Context, userID string) (*Workspace, error) {
	w, err := r.Open(userID)
	if err != nil {
		return nil, err
	}
	if err := w.Load(ctx); err != nil {
		return w, err
	}
	return w, nil
}

func (r *Registry) Get(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.spaces[userID]
	if ok {
		w.touch()
	}
	return w, ok
}

// Drop closes and forgets the user's workspace.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	w, ok := r.spaces[userID]
	delete(r.spaces, userID)
	r.mu.Unlock()
	if ok {
		r.closeAll([]*Workspace{w})
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Sweep closes workspaces idle for longer than the configured TTL.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var idle []*Workspace
	for id, w := range r.spaces {
		if w.IdleFor(now) >= r.cfg.IdleTTL {
			idle = append(idle, w)
			delete(r.spaces, id)
		}
	}
	r.mu.Unlock()

	r.closeAll(idle)
	if len(idle) > 0 {
		r.logger.Info().Int("closed", len(idle)).Msg("idle workspaces swept")
	}
	return len(idle)
}

// Start schedules the idle sweep.
func (r *Registry) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(r.cfg.SweepSpec, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	c.Start()

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	r.logger.Info().Str("spec", r.cfg.SweepSpec).Dur("idle_ttl", r.cfg.IdleTTL).Msg("session sweep started")
	return nil
}

// Close stops the sweep and disposes every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	c := r.cron
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	list := make([]*Workspace, 0, len(spaces))
	for _, w := range spaces {
		list = append(list, w)
	}
	r.closeAll(list)
	r.logger.Info().Int("closed", len(spaces)).Msg("session registry closed")
}
