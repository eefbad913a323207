package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_NAME", "profile-forms")
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream.local/")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CREDENTIAL_SEAL_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://upstream.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Session.CountDebounce != 500*time.Millisecond {
		t.Fatalf("expected default debounce, got %s", cfg.Session.CountDebounce)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.Redis.Addr())
	}
	if cfg.Session.SweepSpec != "@every 1m" {
		t.Fatalf("unexpected sweep spec %q", cfg.Session.SweepSpec)
	}
}

func TestLoad_DurationForms(t *testing.T) {
	setRequired(t)
	t.Setenv("COUNT_DEBOUNCE", "750ms")
	t.Setenv("REDIS_TTL", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Session.CountDebounce != 750*time.Millisecond {
		t.Fatalf("got %s", cfg.Session.CountDebounce)
	}
	if cfg.Redis.TTL != 2*time.Minute {
		t.Fatalf("got %s", cfg.Redis.TTL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("UPSTREAM_BASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "")

	_, err := Load()
	if !errors.Is(err, errMissingRequiredEnv) {
		t.Fatalf("expected missing env error, got %v", err)
	}
	if !strings.Contains(err.Error(), "UPSTREAM_BASE_URL") || !strings.Contains(err.Error(), "JWT_ACCESS_SECRET") {
		t.Fatalf("expected every missing key listed, got %v", err)
	}
}

func TestLoad_InvalidSealKey(t *testing.T) {
	setRequired(t)
	t.Setenv("CREDENTIAL_SEAL_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	if _, err := Load(); !errors.Is(err, errInvalidEnv) {
		t.Fatalf("expected invalid env error, got %v", err)
	}
}
