package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/infrastructure/upstream"

	"github.com/rs/zerolog"
)

var creds = auth.Static(auth.Credentials{APIKey: "k", APISecret: "s"})

type fakeSource struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (f *fakeSource) FetchSkills(ctx context.Context, _ auth.Credentials, _ string) ([]upstream.SkillRecord, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return []upstream.SkillRecord{
		{Name: "python", CanonicalName: "Python"},
		{Name: "golang", CanonicalName: "Go"},
		{Name: "pyspark", CanonicalName: "PySpark"},
	}, nil
}

func (f *fakeSource) FetchCities(context.Context, auth.Credentials) ([]upstream.CityRecord, error) {
	return []upstream.CityRecord{{Name: "Mumbai"}, {Name: "Pune"}}, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (m *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = b
	return nil
}

func TestStore_LoadPublishesSnapshot(t *testing.T) {
	src := &fakeSource{}
	s := NewStore(src, nil, creds, time.Minute, zerolog.Nop())

	if s.Ready() {
		t.Fatalf("store must start empty")
	}
	var notified atomic.Int32
	unsub := s.Subscribe(func(*Snapshot) { notified.Add(1) })
	defer unsub()

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.Ready() || notified.Load() != 1 {
		t.Fatalf("expected ready + one notification, got ready=%v n=%d", s.Ready(), notified.Load())
	}
	snap, _ := s.Snapshot()
	if got, ok := snap.Canonical("Python"); !ok || got != "Python" {
		t.Fatalf("unexpected canonical %q %v", got, ok)
	}
	if got, _ := snap.Canonical("golang"); got != "Go" {
		t.Fatalf("unexpected canonical %q", got)
	}

	// second load is a no-op
	_ = s.Load(context.Background())
	if src.calls.Load() != 1 {
		t.Fatalf("expected single fetch, got %d", src.calls.Load())
	}
}

func TestStore_ConcurrentLoadSingleFetch(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	s := NewStore(src, nil, creds, time.Minute, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Load(context.Background()); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if src.calls.Load() != 1 {
		t.Fatalf("expected a single owner fetch, got %d", src.calls.Load())
	}
}

func TestStore_FailureLeavesStoreRetryable(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	s := NewStore(src, nil, creds, time.Minute, zerolog.Nop())
	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if s.Ready() {
		t.Fatalf("store must stay empty after failure")
	}
	src.err = nil
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !s.Ready() {
		t.Fatalf("expected ready after retry")
	}
}

func TestStore_MissingCredentials(t *testing.T) {
	s := NewStore(&fakeSource{}, nil, auth.Static(auth.Credentials{}), time.Minute, zerolog.Nop())
	if err := s.Load(context.Background()); !errors.Is(err, apperr.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestStore_SharedCacheTier(t *testing.T) {
	cache := &memCache{}
	first := &fakeSource{}
	if err := NewStore(first, cache, creds, time.Minute, zerolog.Nop()).Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	second := &fakeSource{}
	s := NewStore(second, cache, auth.Static(auth.Credentials{}), time.Minute, zerolog.Nop())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if second.calls.Load() != 0 {
		t.Fatalf("expected cache hit without upstream call")
	}
	cities, _ := s.Cities()
	if len(cities) != 2 {
		t.Fatalf("expected cities from cache, got %v", cities)
	}
}

func TestStore_SearchSkills(t *testing.T) {
	s := NewStore(&fakeSource{}, nil, creds, time.Minute, zerolog.Nop())
	if _, err := s.SearchSkills("py", 10); !errors.Is(err, apperr.ErrDependencyNotReady) {
		t.Fatalf("expected ErrDependencyNotReady before load, got %v", err)
	}
	_ = s.Load(context.Background())

	got, err := s.SearchSkills("py", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected python and pyspark, got %+v", got)
	}
}
