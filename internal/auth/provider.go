// Package auth defines how components obtain upstream API credentials.
package auth

import (
	"context"
	"strings"
)

type Credentials struct {
	APIKey    string
	APISecret string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Provider returns the current credentials, or false when they are not
// available yet. Callers must skip network work on false.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, bool)
}

type ProviderFunc func(ctx context.Context) (Credentials, bool)

func (f ProviderFunc) Credentials(ctx context.Context) (Credentials, bool) {
	return f(ctx)
}

// Static always returns c (or nothing when c is incomplete).
func Static(c Credentials) Provider {
	return ProviderFunc(func(context.Context) (Credentials, bool) {
		return c, c.Valid()
	})
}

// Resolve is the nil-safe form of p.Credentials.
func Resolve(ctx context.Context, p Provider) (Credentials, bool) {
	if p == nil {
		return Credentials{}, false
	}
	c, ok := p.Credentials(ctx)
	if !ok || !c.Valid() {
		return Credentials{}, false
	}
	return c, true
}
