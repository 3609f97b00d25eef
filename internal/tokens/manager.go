package tokens

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Acquirer obtains token records from the identity provider.
type Acquirer interface {
	// ExchangeCode trades a one-time authorization code for a token record.
	ExchangeCode(ctx context.Context, code string) (*Record, error)

	// Refresh trades a refresh token for a new token record. When the
	// provider does not rotate refresh tokens, the returned record may
	// carry an empty RefreshToken; the caller must preserve the prior one.
	Refresh(ctx context.Context, refreshToken string) (*Record, error)
}

// Manager is the single source of truth for token freshness. It holds no
// in-memory copy of the record: every decision re-reads the store, so
// out-of-process updates are picked up on the next call.
type Manager struct {
	store    Store
	acquirer Acquirer
	policy   *Policy
	now      func() time.Time

	// mu serializes the load-check-refresh-save sequence so at most one
	// refresh is in flight. A caller that lost the race re-reads the store
	// under the lock and finds the record its rival just saved.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy sets the expiry policy.
func WithPolicy(p *Policy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

// NewManager creates a token manager over the given store and acquirer.
func NewManager(store Store, acquirer Acquirer, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		acquirer: acquirer,
		policy:   NewPolicy(DefaultBuffer),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a currently valid access token.
//
// With no stored record, or an expired record with no refresh token, it
// fails with ErrReauthRequired without touching the network. With a valid
// record it returns the stored token without writing. With an expired record
// and a refresh token it performs one refresh, persists the new record, and
// returns the new token; a rejected refresh also fails with
// ErrReauthRequired, wrapping the provider's reason.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("loading token record: %w", err)
	}
	if rec == nil {
		return "", ErrReauthRequired
	}

	if !m.policy.Expired(rec.ExpiresOn) {
		return rec.AccessToken, nil
	}

	if !rec.HasRefreshToken() {
		return "", ErrReauthRequired
	}

	// The refresh must run to completion and persist even when the caller
	// gives up: abandoning it mid-flight could orphan a token the provider
	// has already rotated.
	rctx := context.WithoutCancel(ctx)

	fresh, err := m.acquirer.Refresh(rctx, rec.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: refresh rejected: %v", ErrReauthRequired, err)
	}

	// Refresh-token rotation is provider-optional. Keep the prior token
	// when no new one was issued, or the chain breaks on the next refresh.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = rec.RefreshToken
	}
	if fresh.Account.Username == "" {
		fresh.Account = rec.Account
	}
	fresh.SavedAt = m.now().UTC()

	if err := m.store.Save(rctx, fresh); err != nil {
		return "", fmt.Errorf("saving refreshed token: %w", err)
	}

	return fresh.AccessToken, nil
}

// CompleteAuthorization exchanges a one-time authorization code and persists
// the resulting record. This is the only path from "no token" to "valid".
// Exchange failures surface as-is and are never retried.
func (m *Manager) CompleteAuthorization(ctx context.Context, code string) (*Record, error) {
	rec, err := m.acquirer.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.SavedAt = m.now().UTC()
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving token record: %w", err)
	}

	return rec, nil
}

// Status describes the stored record without refreshing it.
type Status struct {
	HasToken  bool
	Expired   bool
	ExpiresOn time.Time
	Account   Account
}

// Status reports the stored record's presence and freshness. It performs no
// network call and no write. Storage read faults surface as errors; a
// corrupt record reads as absent per the Store contract.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading token record: %w", err)
	}
	if rec == nil {
		return &Status{}, nil
	}

	return &Status{
		HasToken:  true,
		Expired:   m.policy.Expired(rec.ExpiresOn),
		ExpiresOn: rec.ExpiresOn,
		Account:   rec.Account,
	}, nil
}

// CheckHealth verifies the manager's storage backend is healthy.
func (m *Manager) CheckHealth(ctx context.Context) error {
	return m.store.CheckHealth(ctx)
}
