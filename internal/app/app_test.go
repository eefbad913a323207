package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"profile-forms/internal/config"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listView struct {
	Mode     string            `json:"mode"`
	ActiveID string            `json:"active_id"`
	Errors   map[string]string `json:"errors"`
	Entries  []struct {
		ID        string `json:"id"`
		Persisted bool   `json:"persisted"`
	} `json:"entries"`
}

func fakeUpstream(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	counts := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token key-1:secret-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/api/me":
			_, _ = w.Write([]byte(`{"data":{"user_id":"recruiter@example.com"}}`))
		case r.URL.Path == "/api/skills":
			_, _ = w.Write([]byte(`{"data":[{"name":"python","canonical_name":"Python"}]}`))
		case r.URL.Path == "/api/cities":
			_, _ = w.Write([]byte(`{"data":[{"name":"Mumbai"}]}`))
		case r.URL.Path == "/api/profiles/count":
			counts.Add(1)
			_, _ = w.Write([]byte(`{"data":{"count":7}}`))
		case r.URL.Path == "/api/resources/educations" && r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			var fields map[string]any
			_ = json.Unmarshal(body, &fields)
			fields["name"] = "EDU-9"
			b, _ := json.Marshal(map[string]any{"data": fields})
			_, _ = w.Write(b)
		case r.URL.Path == "/api/resources/educations":
			_, _ = w.Write([]byte(`{"data":[{"name":"EDU-1","institution":"MIT","degree":"MSc","start_year":"2018"}]}`))
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, counts
}

func newTestApp(t *testing.T) (*App, *atomic.Int32) {
	t.Helper()
	srv, counts := fakeUpstream(t)

	cfg := config.Config{
		App:      config.AppConfig{AppName: "profile-forms-test", Environment: "test", HTTPPort: "0", LogLevel: "info"},
		Upstream: config.UpstreamConfig{BaseURL: srv.URL, Timeout: 2 * time.Second},
		Auth:     config.AuthConfig{AccessSecret: "test-secret", AccessExpiresIn: time.Hour},
		Redis:    config.RedisConfig{Host: "127.0.0.1", Port: "1", TTL: time.Minute},
		Session:  config.SessionConfig{CountDebounce: 10 * time.Millisecond, IdleTTL: time.Hour, SweepSpec: "@every 1h"},
	}
	copy(cfg.Auth.SealKey[:], "0123456789abcdef0123456789abcdef")

	c, err := NewContainer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("container: %v", err)
	}
	a, cleanup, err := Bootstrap(cfg, c)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = cleanup() })
	return a, counts
}

func call(t *testing.T, a *App, method, path, token, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.Fiber.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func openSession(t *testing.T, a *App) string {
	t.Helper()
	status, env := call(t, a, http.MethodPost, "/api/v1/auth/session", "",
		`{"user_id":"recruiter@example.com","api_key":"key-1","api_secret":"secret-1"}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", status, env.Message)
	}
	var s struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &s); err != nil || s.AccessToken == "" {
		t.Fatalf("missing access token: %v", err)
	}
	return s.AccessToken
}

func decodeList(t *testing.T, env envelope) listView {
	t.Helper()
	var v listView
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode list view: %v", err)
	}
	return v
}

func TestApp_Health(t *testing.T) {
	a, _ := newTestApp(t)

	status, env := call(t, a, http.MethodGet, "/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var h map[string]any
	_ = json.Unmarshal(env.Data, &h)
	if h["cache"] != "unavailable" {
		t.Fatalf("expected unavailable cache, got %v", h["cache"])
	}
}

func TestApp_CreateSessionValidates(t *testing.T) {
	a, _ := newTestApp(t)

	status, env := call(t, a, http.MethodPost, "/api/v1/auth/session", "", `{"user_id":"u1"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	var fields map[string]string
	_ = json.Unmarshal(env.Data, &fields)
	if fields["api_key"] == "" || fields["api_secret"] == "" {
		t.Fatalf("expected per-field messages, got %v", fields)
	}
}

func TestApp_CreateSessionChecksCredentialOwner(t *testing.T) {
	a, _ := newTestApp(t)
	token := openSession(t, a)
	base := "/api/v1/profile/educations"

	if status, _ := call(t, a, http.MethodGet, base+"/", token, ""); status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if status, _ := call(t, a, http.MethodPost, base+"/add", token, ""); status != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", status)
	}
	if status, _ := call(t, a, http.MethodPut, base+"/active", token, `{"institution":"Private Draft U"}`); status != http.StatusOK {
		t.Fatalf("set fields: expected 200, got %d", status)
	}

	status, env := call(t, a, http.MethodPost, "/api/v1/auth/session", "",
		`{"user_id":"recruiter@example.com","api_key":"other","api_secret":"other"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("rejected credentials: expected 401, got %d", status)
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		t.Fatalf("no session data may leak, got %s", env.Data)
	}

	status, _ = call(t, a, http.MethodPost, "/api/v1/auth/session", "",
		`{"user_id":"someone@example.com","api_key":"key-1","api_secret":"secret-1"}`)
	if status != http.StatusForbidden {
		t.Fatalf("foreign user id: expected 403, got %d", status)
	}

	// the stored credentials still work for the owner
	if status, _ := call(t, a, http.MethodGet, base+"/", token, ""); status != http.StatusOK {
		t.Fatalf("owner list after rejected attempts: expected 200, got %d", status)
	}
}

func TestApp_ProtectedRoutesNeedToken(t *testing.T) {
	a, _ := newTestApp(t)

	if status, _ := call(t, a, http.MethodGet, "/api/v1/profile/educations/", "", ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if status, _ := call(t, a, http.MethodGet, "/api/v1/job-filter/count", "garbage", ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", status)
	}
}

func TestApp_EducationEditFlow(t *testing.T) {
	a, _ := newTestApp(t)
	token := openSession(t, a)
	base := "/api/v1/profile/educations"

	status, env := call(t, a, http.MethodGet, base+"/", token, "")
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d (%s)", status, env.Message)
	}
	if v := decodeList(t, env); len(v.Entries) != 1 || v.Entries[0].ID != "EDU-1" {
		t.Fatalf("unexpected entries %+v", v.Entries)
	}

	status, env = call(t, a, http.MethodPost, base+"/add", token, "")
	if status != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", status)
	}
	if v := decodeList(t, env); v.Mode != "editing" || v.ActiveID == "" {
		t.Fatalf("expected editing mode, got %+v", v)
	}

	if status, _ = call(t, a, http.MethodPut, base+"/active", token, `{"institution":"IIT Bombay"}`); status != http.StatusOK {
		t.Fatalf("set fields: expected 200, got %d", status)
	}
	status, env = call(t, a, http.MethodPost, base+"/active/save", token, "")
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("save incomplete: expected 422, got %d", status)
	}
	var fields map[string]string
	_ = json.Unmarshal(env.Data, &fields)
	if fields["degree"] == "" || fields["start_year"] == "" {
		t.Fatalf("expected degree and start_year errors, got %v", fields)
	}

	if status, _ = call(t, a, http.MethodPut, base+"/active", token,
		`{"institution":"IIT Bombay","degree":"BTech","start_year":"2014","end_year":"2018"}`); status != http.StatusOK {
		t.Fatalf("set fields: expected 200, got %d", status)
	}
	status, env = call(t, a, http.MethodPost, base+"/active/save", token, "")
	if status != http.StatusOK {
		t.Fatalf("save: expected 200, got %d (%s)", status, env.Message)
	}
	v := decodeList(t, env)
	if v.Mode != "list" || len(v.Entries) != 2 || v.Entries[0].ID != "EDU-9" || !v.Entries[0].Persisted {
		t.Fatalf("unexpected view after save %+v", v)
	}

	status, env = call(t, a, http.MethodPost, base+"/reorder", token, `{"from":0,"to":1}`)
	if status != http.StatusOK {
		t.Fatalf("reorder: expected 200, got %d", status)
	}
	if v := decodeList(t, env); v.Entries[0].ID != "EDU-1" {
		t.Fatalf("expected EDU-1 first, got %+v", v.Entries)
	}

	if status, _ = call(t, a, http.MethodPost, base+"/active/save", token, ""); status != http.StatusConflict {
		t.Fatalf("save outside editing: expected 409, got %d", status)
	}
	if status, _ = call(t, a, http.MethodDelete, base+"/missing", token, ""); status != http.StatusNotFound {
		t.Fatalf("remove unknown: expected 404, got %d", status)
	}
}

func TestApp_JobFilterCount(t *testing.T) {
	a, counts := newTestApp(t)
	token := openSession(t, a)

	status, env := call(t, a, http.MethodPatch, "/api/v1/job-filter/", token, `{"city":"Mumbai","bogus":["x"]}`)
	if status != http.StatusBadRequest {
		t.Fatalf("unknown key: expected 400, got %d", status)
	}
	var fields map[string]string
	_ = json.Unmarshal(env.Data, &fields)
	if _, ok := fields["bogus"]; !ok {
		t.Fatalf("expected bogus to be reported, got %v", fields)
	}

	status, _ = call(t, a, http.MethodPatch, "/api/v1/job-filter/", token, `{"city":"Mumbai","work_mode":["remote"]}`)
	if status != http.StatusAccepted {
		t.Fatalf("patch: expected 202, got %d", status)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		_, env = call(t, a, http.MethodGet, "/api/v1/job-filter/count", token, "")
		var snap struct {
			Count    int                 `json:"count"`
			Fetching bool                `json:"fetching"`
			Filter   map[string][]string `json:"filter"`
		}
		_ = json.Unmarshal(env.Data, &snap)
		if snap.Count == 7 && !snap.Fetching {
			if got := snap.Filter["workMode"]; len(got) != 1 || got[0] != "remote" {
				t.Fatalf("unexpected filter %v", snap.Filter)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("count never arrived, last snapshot %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if counts.Load() == 0 {
		t.Fatalf("expected an upstream count request")
	}
}

func TestApp_DeleteSessionDropsWorkspace(t *testing.T) {
	a, _ := newTestApp(t)
	token := openSession(t, a)

	if n := a.Container.Sessions.Len(); n != 1 {
		t.Fatalf("expected one workspace, got %d", n)
	}
	if status, _ := call(t, a, http.MethodDelete, "/api/v1/auth/session", token, ""); status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if n := a.Container.Sessions.Len(); n != 0 {
		t.Fatalf("expected no workspace, got %d", n)
	}
}

func TestListenAddr(t *testing.T) {
	cases := map[string]string{"8080": ":8080", ":9000": ":9000", " 80 ": ":80"}
	for in, want := range cases {
		got, err := ListenAddr(in)
		if err != nil || got != want {
			t.Fatalf("ListenAddr(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ListenAddr(" "); err == nil {
		t.Fatalf("expected error for empty port")
	}
}
