// Package lookup is the read-only skills/cities repository shared by the
// forms of one workspace. One caller loads; everybody else reads immutable
// snapshots or subscribes to the publish.
package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/infrastructure/upstream"

	"github.com/rs/zerolog"
)

const (
	skillsCacheKey = "lookup:skills"
	citiesCacheKey = "lookup:cities"
)

type SkillRef struct {
	Name          string `json:"name"`
	CanonicalName string `json:"canonical_name"`
}

type CityRef struct {
	Name string `json:"name"`
}

type Source interface {
	FetchSkills(ctx context.Context, creds auth.Credentials, query string) ([]upstream.SkillRecord, error)
	FetchCities(ctx context.Context, creds auth.Credentials) ([]upstream.CityRecord, error)
}

// Cache is the optional shared tier (Redis in production).
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Snapshot is published once and never mutated afterwards.
type Snapshot struct {
	Skills   []SkillRef
	Cities   []CityRef
	LoadedAt time.Time

	canonical map[string]string
}

func newSnapshot(skills []SkillRef, cities []CityRef, at time.Time) *Snapshot {
	canonical := make(map[string]string, len(skills))
	for _, s := range skills {
		display := s.CanonicalName
		if display == "" {
			display = s.Name
		}
		canonical[normalize(s.Name)] = display
	}
	return &Snapshot{Skills: skills, Cities: cities, LoadedAt: at, canonical: canonical}
}

// Canonical resolves a skill name to its display form.
func (s *Snapshot) Canonical(name string) (string, bool) {
	v, ok := s.canonical[normalize(name)]
	return v, ok
}

type Store struct {
	source Source
	cache  Cache
	creds  auth.Provider
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	snap atomic.Pointer[Snapshot]

	mu      sync.Mutex
	loading chan struct{}
	loadErr error
	subs    map[int]func(*Snapshot)
	nextSub int
}

func NewStore(source Source, cache Cache, creds auth.Provider, ttl time.Duration, logger zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		source: source,
		cache:  cache,
		creds:  creds,
		ttl:    ttl,
		logger: logger.With().Str("component", "lookup").Logger(),
		now:    time.Now,
		subs:   make(map[int]func(*Snapshot)),
	}
}

func (s *Store) Ready() bool { return s.snap.Load() != nil }

func (s *Store) Snapshot() (*Snapshot, bool) {
	snap := s.snap.Load()
	return snap, snap != nil
}

func (s *Store) Skills() ([]SkillRef, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, false
	}
	return snap.Skills, true
}

func (s *Store) Cities() ([]CityRef, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, false
	}
	return snap.Cities, true
}

// Canonical returns the display name of a skill, or name itself when the
// table is not loaded or does not know it.
func (s *Store) Canonical(name string) string {
	if snap := s.snap.Load(); snap != nil {
		if v, ok := snap.Canonical(name); ok {
			return v
		}
	}
	return strings.TrimSpace(name)
}

// SearchSkills matches query and its aliases against names and canonical
// names of the loaded table, prefix matches first.
func (s *Store) SearchSkills(query string, limit int) ([]SkillRef, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, apperr.ErrDependencyNotReady
	}
	if limit <= 0 {
		limit = 20
	}
	variants := expandQuery(normalizeQuery(query))

	var prefix, contains []SkillRef
	for _, sk := range snap.Skills {
		name, display := normalizeQuery(sk.Name), normalizeQuery(sk.CanonicalName)
		if len(variants) == 0 {
			prefix = append(prefix, sk)
			continue
		}
		matched := false
		for _, q := range variants {
			if strings.HasPrefix(name, q) || strings.HasPrefix(display, q) {
				prefix = append(prefix, sk)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		for _, q := range variants {
			if strings.Contains(name, q) || strings.Contains(display, q) {
				contains = append(contains, sk)
				break
			}
		}
	}
	out := append(prefix, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Subscribe registers fn for the publish. If the table is already loaded fn
// is called right away.
func (s *Store) Subscribe(fn func(*Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	if snap := s.snap.Load(); snap != nil {
		fn(snap)
	}
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Load fetches the tables once. Concurrent callers wait for the owner's
// result; a failed load leaves the store empty so a later call can retry.
func (s *Store) Load(ctx context.Context) error {
	if s.Ready() {
		return nil
	}

	s.mu.Lock()
	if ch := s.loading; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
			s.mu.Lock()
			err := s.loadErr
			s.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ch := make(chan struct{})
	s.loading = ch
	s.mu.Unlock()

	snap, err := s.fetch(ctx)

	s.mu.Lock()
	s.loading = nil
	s.loadErr = err
	var subs []func(*Snapshot)
	if err == nil {
		s.snap.Store(snap)
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()
	close(ch)

	if err != nil {
		return err
	}
	s.logger.Info().Int("skills", len(snap.Skills)).Int("cities", len(snap.Cities)).Msg("lookup tables loaded")
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *Store) fetch(ctx context.Context) (*Snapshot, error) {
	var skills []SkillRef
	var cities []CityRef
	if s.readCache(ctx, &skills, &cities) {
		return newSnapshot(skills, cities, s.now()), nil
	}

	creds, ok := auth.Resolve(ctx, s.creds)
	if !ok {
		return nil, apperr.ErrMissingCredentials
	}

	skillRecs, err := s.source.FetchSkills(ctx, creds, "")
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	cityRecs, err := s.source.FetchCities(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("load cities: %w", err)
	}

	skills = make([]SkillRef, 0, len(skillRecs))
	for _, r := range skillRecs {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		skills = append(skills, SkillRef{Name: r.Name, CanonicalName: r.CanonicalName})
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })

	cities = make([]CityRef, 0, len(cityRecs))
	for _, r := range cityRecs {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		cities = append(cities, CityRef{Name: r.Name})
	}

	s.writeCache(ctx, skills, cities)
	return newSnapshot(skills, cities, s.now()), nil
}

func (s *Store) readCache(ctx context.Context, skills *[]SkillRef, cities *[]CityRef) bool {
	if s.cache == nil {
		return false
	}
	okSkills, err := s.cache.GetJSON(ctx, skillsCacheKey, skills)
	if err != nil || !okSkills {
		return false
	}
	okCities, err := s.cache.GetJSON(ctx, citiesCacheKey, cities)
	if err != nil || !okCities {
		return false
	}
	s.logger.Debug().Msg("lookup tables served from cache")
	return true
}

func (s *Store) writeCache(ctx context.Context, skills []SkillRef, cities []CityRef) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, skillsCacheKey, skills, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", skillsCacheKey).Msg("cache write failed")
	}
	if err := s.cache.SetJSON(ctx, citiesCacheKey, cities, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", citiesCacheKey).Msg("cache write failed")
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
