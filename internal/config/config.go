package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Upstream UpstreamConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Session  SessionConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
	LogLevel    string
}

type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	AccessSecret    string
	AccessExpiresIn time.Duration
	// SealKey is the 32-byte key used to seal stored upstream credentials.
	SealKey [32]byte
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	TTL      time.Duration
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type SessionConfig struct {
	CountDebounce time.Duration
	IdleTTL       time.Duration
	SweepSpec     string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidEnv         = errors.New("invalid environment variables")
)

// Load reads the process environment, after merging a .env file from the
// working directory when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}

	var missing, invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		return v
	}
	dur := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		d, err := parseDuration(raw)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return def
		}
		return d
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
		LogLevel:    opt("LOG_LEVEL", "info"),
	}

	cfg.Upstream = UpstreamConfig{
		BaseURL: strings.TrimRight(req("UPSTREAM_BASE_URL"), "/"),
		Timeout: dur("UPSTREAM_TIMEOUT", 10*time.Second),
	}

	cfg.Auth = AuthConfig{
		AccessSecret:    req("JWT_ACCESS_SECRET"),
		AccessExpiresIn: dur("JWT_ACCESS_EXPIRES_IN", 12*time.Hour),
	}
	if raw := req("CREDENTIAL_SEAL_KEY"); raw != "" {
		key, err := parseSealKey(raw)
		if err != nil {
			invalid = append(invalid, "CREDENTIAL_SEAL_KEY")
		}
		cfg.Auth.SealKey = key
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST", "localhost"),
		Port:     opt("REDIS_PORT", "6379"),
		Password: opt("REDIS_PASSWORD", ""),
		TTL:      dur("REDIS_TTL", 600*time.Second),
	}

	cfg.Session = SessionConfig{
		CountDebounce: dur("COUNT_DEBOUNCE", 500*time.Millisecond),
		IdleTTL:       dur("SESSION_IDLE_TTL", 30*time.Minute),
		SweepSpec:     opt("SESSION_SWEEP_SPEC", "@every 1m"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseDuration accepts Go durations ("750ms", "12h") and bare seconds.
func parseDuration(raw string) (time.Duration, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func parseSealKey(raw string) ([32]byte, error) {
	var key [32]byte
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return key, err
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("seal key must be %d bytes, got %d", len(key), len(b))
	}
	copy(key[:], b)
	return key, nil
}
