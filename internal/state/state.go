// Package state issues and validates the OAuth authorization state
// parameter, protecting the redirect callback against forgery.
package state

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidState indicates a missing, malformed, tampered, already
// consumed, or expired state parameter.
var ErrInvalidState = errors.New("invalid state parameter")

// Store holds issued state tokens until the callback consumes them.
type Store interface {
	// Put records a token with an expiry window.
	Put(ctx context.Context, token string, expiresIn time.Duration) error

	// Take removes the token, reporting whether it was present and
	// unexpired. A token can be taken at most once.
	Take(ctx context.Context, token string) (bool, error)

	// CheckHealth verifies the store is operational.
	CheckHealth(ctx context.Context) error
}

// Manager issues HMAC-signed one-time state tokens.
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
}

// NewManager creates a state manager. An empty secret gets replaced with a
// random per-process key, which is sufficient for a single-instance deploy.
func NewManager(store Store, secret []byte, expiresIn time.Duration) *Manager {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("state: generating secret: %v", err))
		}
	}
	return &Manager{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
	}
}

// Issue creates, signs, and stores a new state token.
func (m *Manager) Issue(ctx context.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(raw)
	full := token + "." + m.sign(token)

	if err := m.store.Put(ctx, full, m.expiresIn); err != nil {
		return "", fmt.Errorf("storing state: %w", err)
	}

	return full, nil
}

// Validate checks the token's signature, then consumes it from the store.
// Both a forged token and a replayed one fail with ErrInvalidState.
func (m *Manager) Validate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidState
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return ErrInvalidState
	}
	if !hmac.Equal([]byte(m.sign(parts[0])), []byte(parts[1])) {
		return ErrInvalidState
	}

	ok, err := m.store.Take(ctx, token)
	if err != nil {
		return fmt.Errorf("checking state: %w", err)
	}
	if !ok {
		return ErrInvalidState
	}

	return nil
}

// CheckHealth verifies the state manager is operational.
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("state store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(token string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
