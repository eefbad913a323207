// Package session groups the per-user form components: one lookup store,
// one job-filter counter and a list controller per profile section.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/counter"
	"profile-forms/internal/domain/profile"
	"profile-forms/internal/infrastructure/upstream"
	"profile-forms/internal/listctl"
	"profile-forms/internal/lookup"
	"profile-forms/internal/pkg/concurrency"

	"github.com/rs/zerolog"
)

type Workspace struct {
	UserID string

	Lookups      *lookup.Store
	Counter      *counter.Counter
	Educations   *listctl.Controller[profile.Education]
	Experiences  *listctl.Controller[profile.Experience]
	Certificates *listctl.Controller[profile.Certificate]

	logger   zerolog.Logger
	lastUsed atomic.Int64
	now      func() time.Time

	loadMu sync.Mutex
	mu     sync.Mutex
	loaded bool
	closed bool
	unsubs []func()
}

func (w *Workspace) touch() {
	w.lastUsed.Store(w.now().UnixNano())
}

// IdleFor reports how long the workspace has gone unused.
func (w *Workspace) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastUsed.Load()))
}

func (w *Workspace) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Load fills the lookup tables and the three resource lists in parallel. A
// workspace that loaded once is not reloaded; a failed load can be retried.
func (w *Workspace) Load(ctx context.Context) error {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("workspace %s: %w", w.UserID, apperr.ErrClosed)
	}
	if w.loaded {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	type loader struct {
		name string
		fn   func(context.Context) error
	}
	loaders := []loader{
		{"lookups", w.Lookups.Load},
		{profile.KindEducation, w.Educations.Load},
		{profile.KindExperience, w.Experiences.Load},
		{profile.KindCertificate, w.Certificates.Load},
	}

	start := w.now()
	_, errs := concurrency.ProcessParallel(ctx, loaders, concurrency.DefaultOptions(),
		func(ctx context.Context, _ int, l loader) (struct{}, error) {
			if err := l.fn(ctx); err != nil {
				return struct{}{}, fmt.Errorf("load %s: %w", l.name, err)
			}
			return struct{}{}, nil
		})
	if len(errs) > 0 {
		err := errors.Join(errs...)
		w.logger.Warn().Err(err).Msg("workspace load incomplete")
		return err
	}

	w.mu.Lock()
	w.loaded = true
	w.mu.Unlock()
	w.logger.Info().Dur("latency", w.now().Sub(start)).Msg("workspace loaded")
	return nil
}

// Prefetch runs Load in the background. Failures are logged by Load and
// retried by the next caller.
func (w *Workspace) Prefetch(timeout time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = w.Load(ctx)
	}()
}

// Close disposes every component. Responses still in flight are ignored.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	unsubs := w.unsubs
	w.unsubs = nil
	w.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	w.Counter.Close()
	w.Educations.Close()
	w.Experiences.Close()
	w.Certificates.Close()
}

type workspaceDeps struct {
	userID   string
	upstream Upstream
	cache    lookup.Cache
	creds    auth.Provider
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

func newWorkspace(d workspaceDeps) *Workspace {
	logger := d.logger.With().Str("user_id", d.userID).Logger()

	lookups := lookup.NewStore(d.upstream, d.cache, d.creds, d.cfg.LookupTTL, logger)
	cnt := counter.New(d.upstream, lookups, d.creds, counter.Options{
		Delay:     d.cfg.CountDebounce,
		Timeout:   d.cfg.CountTimeout,
		AfterFunc: d.cfg.AfterFunc,
		Logger:    logger,
	})

	w := &Workspace{
		UserID:  d.userID,
		Lookups: lookups,
		Counter: cnt,
		Educations: listctl.New[profile.Education](
			newResourceStore[profile.Education](d, profile.KindEducation),
			listctl.Options[profile.Education]{
				Validate:  profile.Education.Validate,
				Prepare:   profile.Education.Sanitize,
				Populated: profile.Education.HasRequired,
				Logger:    logger.With().Str("section", profile.KindEducation).Logger(),
			}),
		Experiences: listctl.New[profile.Experience](
			newResourceStore[profile.Experience](d, profile.KindExperience),
			listctl.Options[profile.Experience]{
				Validate:  profile.Experience.Validate,
				Prepare:   profile.Experience.Sanitize,
				Populated: profile.Experience.HasRequired,
				Logger:    logger.With().Str("section", profile.KindExperience).Logger(),
			}),
		Certificates: listctl.New[profile.Certificate](
			newResourceStore[profile.Certificate](d, profile.KindCertificate),
			listctl.Options[profile.Certificate]{
				Validate:  profile.Certificate.Validate,
				Prepare:   profile.Certificate.Sanitize,
				Populated: profile.Certificate.HasRequired,
				Logger:    logger.With().Str("section", profile.KindCertificate).Logger(),
			}),
		logger: logger,
		now:    d.now,
	}
	w.touch()

	// A count cycle skipped while the skill table was loading runs again
	// once the table is published.
	w.unsubs = append(w.unsubs, lookups.Subscribe(func(*lookup.Snapshot) {
		cnt.DependenciesReady()
	}))
	return w
}

func newResourceStore[T any](d workspaceDeps, kind string) *upstream.ResourceStore[T] {
	return upstream.NewResourceStore[T](d.upstream, kind, d.userID, d.creds)
}
