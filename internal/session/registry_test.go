package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/counter"
	"profile-forms/internal/infrastructure/upstream"
	"profile-forms/internal/pkg/flight/flighttest"
	"profile-forms/internal/pkg/httpx"

	"github.com/rs/zerolog"
)

type credsFunc func(userID string) auth.Provider

func (f credsFunc) Provider(userID string) auth.Provider { return f(userID) }

var allowAll = credsFunc(func(string) auth.Provider {
	return auth.Static(auth.Credentials{APIKey: "k", APISecret: "s"})
})

func newUpstream(t *testing.T) (*upstream.Client, *sync.Map) {
	t.Helper()
	hits := &sync.Map{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		switch r.URL.Path {
		case "/api/skills":
			_, _ = w.Write([]byte(`{"data":[{"name":"python","canonical_name":"Python"}]}`))
		case "/api/cities":
			_, _ = w.Write([]byte(`{"data":[{"name":"Mumbai"}]}`))
		case "/api/profiles/count":
			_, _ = w.Write([]byte(`{"data":{"count":3}}`))
		case "/api/resources/educations":
			_, _ = w.Write([]byte(`{"data":[{"name":"EDU-1","institution":"MIT","degree":"MSc","start_year":"2018"}]}`))
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	c := upstream.New(srv.URL, time.Second, zerolog.Nop()).
		WithHTTPClient(srv.Client()).
		WithReadRetry(httpx.SingleAttempt())
	return c, hits
}

func TestRegistry_AcquireLoadsEverything(t *testing.T) {
	up, _ := newUpstream(t)
	r := NewRegistry(up, nil, allowAll, Config{}, zerolog.Nop())
	defer r.Close()

	w, err := r.Acquire(context.Background(), "u1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !w.Loaded() || !w.Lookups.Ready() {
		t.Fatalf("expected loaded workspace")
	}
	if got := w.Educations.Entries(); len(got) != 1 || got[0].ID != "EDU-1" {
		t.Fatalf("unexpected educations %+v", got)
	}
	if len(w.Certificates.Entries()) != 0 {
		t.Fatalf("expected no certificates")
	}

	same, err := r.Open("u1")
	if err != nil || same != w {
		t.Fatalf("expected the same workspace on second open")
	}
}

func TestRegistry_MissingCredentials(t *testing.T) {
	up, hits := newUpstream(t)
	none := credsFunc(func(string) auth.Provider { return auth.Static(auth.Credentials{}) })
	r := NewRegistry(up, nil, none, Config{}, zerolog.Nop())
	defer r.Close()

	w, err := r.Acquire(context.Background(), "u1")
	if !errors.Is(err, apperr.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if w == nil || w.Loaded() {
		t.Fatalf("workspace must exist but stay unloaded")
	}
	count := 0
	hits.Range(func(_, _ any) bool { count++; return true })
	if count != 0 {
		t.Fatalf("no request may reach upstream without credentials")
	}
}

func TestRegistry_OpenRejectsEmptyUser(t *testing.T) {
	up, _ := newUpstream(t)
	r := NewRegistry(up, nil, allowAll, Config{}, zerolog.Nop())
	defer r.Close()
	if _, err := r.Open("  "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistry_SweepClosesIdle(t *testing.T) {
	up, hits := newUpstream(t)
	clock := flighttest.NewClock()
	r := NewRegistry(up, nil, allowAll, Config{IdleTTL: time.Minute, AfterFunc: clock.AfterFunc}, zerolog.Nop())
	defer r.Close()

	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	idle, _ := r.Open("idle")
	now = now.Add(45 * time.Second)
	if _, err := r.Open("active"); err != nil {
		t.Fatalf("open: %v", err)
	}
	now = now.Add(30 * time.Second)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one workspace swept, got %d", n)
	}
	if _, ok := r.Get("idle"); ok {
		t.Fatalf("idle workspace must be gone")
	}
	if _, ok := r.Get("active"); !ok {
		t.Fatalf("active workspace must survive")
	}

	// the disposed counter no longer fetches
	idle.Counter.SetFilter(counter.Patch{counter.KeyCity: {"Pune"}})
	clock.Advance(time.Second)
	if _, ok := hits.Load("/api/profiles/count"); ok {
		t.Fatalf("closed workspace must not fetch")
	}
	if err := idle.Load(context.Background()); !errors.Is(err, apperr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRegistry_StartRejectsBadCronExpr(t *testing.T) {
	up, _ := newUpstream(t)
	r := NewRegistry(up, nil, allowAll, Config{SweepSpec: "not a spec"}, zerolog.Nop())
	defer r.Close()
	if err := r.Start(); err == nil {
		t.Fatalf("expected invalid cron spec error")
	}
}

func TestRegistry_CloseRejectsOpen(t *testing.T) {
	up, _ := newUpstream(t)
	r := NewRegistry(up, nil, allowAll, Config{}, zerolog.Nop())
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = r.Open("u1")
	r.Close()

	if r.Len() != 0 {
		t.Fatalf("expected no workspaces after close")
	}
	if _, err := r.Open("u1"); !errors.Is(err, apperr.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRegistry_Hooks(t *testing.T) {
	up, _ := newUpstream(t)
	r := NewRegistry(up, nil, allowAll, Config{}, zerolog.Nop())

	var opened, closed []string
	r.OnOpen(func(w *Workspace) { opened = append(opened, w.UserID) })
	r.OnClose(func(userID string) { closed = append(closed, userID) })

	_, _ = r.Open("u1")
	_, _ = r.Open("u1")
	_, _ = r.Open("u2")
	r.Drop("u1")
	r.Close()

	if len(opened) != 2 {
		t.Fatalf("expected a hook per new workspace, got %v", opened)
	}
	if len(closed) != 2 || closed[0] != "u1" {
		t.Fatalf("expected close hooks for u1 then u2, got %v", closed)
	}
}
