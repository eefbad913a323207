// Package credstore keeps the upstream API credentials each user hands the
// BFF. Values are sealed with NaCl secretbox before they leave the process.
package credstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/secretbox"
)

const keyPrefix = "creds:"

var errUnseal = errors.New("credstore: cannot unseal credentials")

// Backend is the shared tier (*cache.Redis). A nil Backend keeps everything
// in process memory.
type Backend interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Store struct {
	backend Backend
	key     [32]byte
	ttl     time.Duration
	logger  zerolog.Logger

	mu  sync.RWMutex
	mem map[string][]byte
}

func New(backend Backend, key [32]byte, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		key:     key,
		ttl:     ttl,
		logger:  logger.With().Str("component", "credstore").Logger(),
		mem:     make(map[string][]byte),
	}
}

type payload struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func (s *Store) Put(ctx context.Context, userID string, c auth.Credentials) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", apperr.ErrInvalidInput)
	}
	if !c.Valid() {
		return apperr.ErrMissingCredentials
	}
	sealed, err := s.seal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.mem[userID] = sealed
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.SetBytes(ctx, keyPrefix+userID, sealed, s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("shared credential write failed")
		}
	}
	return nil
}

// Get returns the user's credentials, looking in process memory first and
// then in the shared tier.
func (s *Store) Get(ctx context.Context, userID string) (auth.Credentials, bool, error) {
	s.mu.RLock()
	sealed, ok := s.mem[userID]
	s.mu.RUnlock()

	if !ok && s.backend != nil {
		b, found, err := s.backend.GetBytes(ctx, keyPrefix+userID)
		if err != nil {
			return auth.Credentials{}, false, err
		}
		if found {
			sealed, ok = b, true
			s.mu.Lock()
			s.mem[userID] = b
			s.mu.Unlock()
		}
	}
	if !ok {
		return auth.Credentials{}, false, nil
	}

	c, err := s.open(sealed)
	if err != nil {
		return auth.Credentials{}, false, err
	}
	return c, true, nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.mem, userID)
	s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	return s.backend.Delete(ctx, keyPrefix+userID)
}

// Provider binds the store to one user. Lookup failures read as "no
// credentials yet", so dependants skip their network work.
func (s *Store) Provider(userID string) auth.Provider {
	return auth.ProviderFunc(func(ctx context.Context) (auth.Credentials, bool) {
		c, ok, err := s.Get(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("credential lookup failed")
			return auth.Credentials{}, false
		}
		return c, ok
	})
}

func (s *Store) seal(c auth.Credentials) ([]byte, error) {
	plain, err := json.Marshal(payload{APIKey: c.APIKey, APISecret: c.APISecret})
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("credstore: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Store) open(sealed []byte) (auth.Credentials, error) {
	if len(sealed) < 24+secretbox.Overhead {
		return auth.Credentials{}, errUnseal
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return auth.Credentials{}, errUnseal
	}
	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return auth.Credentials{}, errUnseal
	}
	return auth.Credentials{APIKey: p.APIKey, APISecret: p.APISecret}, nil
}
