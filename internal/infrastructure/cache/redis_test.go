package cache

import (
	"context"
	"testing"
	"time"

	"profile-forms/internal/config"

	"github.com/rs/zerolog"
)

func TestRedis_UnavailableIsMissAndNoop(t *testing.T) {
	r := NewRedis(config.RedisConfig{Host: "127.0.0.1", Port: "1", TTL: time.Minute}, zerolog.Nop())
	if r.Available() {
		t.Skip("something is listening on port 1")
	}
	ctx := context.Background()

	if err := r.SetJSON(ctx, "k", map[string]int{"a": 1}, 0); err != nil {
		t.Fatalf("set on unavailable redis must be a no-op, got %v", err)
	}
	var out map[string]int
	ok, err := r.GetJSON(ctx, "k", &out)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := r.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Ping(ctx); err == nil {
		t.Fatalf("ping must report the outage")
	}
}

func TestRedis_NilReceiver(t *testing.T) {
	var r *Redis
	if _, ok, err := r.GetBytes(context.Background(), "k"); ok || err != nil {
		t.Fatalf("nil cache must miss")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
