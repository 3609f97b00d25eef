package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps issued state tokens in process memory. Suitable for the
// single-instance file-backed deployment where no Redis is available; state
// does not need to survive a restart, the user just re-runs /authorize.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
	now    func() time.Time
}

// NewMemoryStore creates an in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Put records a token with an expiry window.
func (s *MemoryStore) Put(ctx context.Context, token string, expiresIn time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic sweep keeps the map from growing on abandoned flows.
	now := s.now()
	for tok, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, tok)
		}
	}

	s.tokens[token] = now.Add(expiresIn)
	return nil
}

// Take removes the token, reporting whether it was present and unexpired.
func (s *MemoryStore) Take(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.tokens[token]
	if !ok {
		return false, nil
	}
	delete(s.tokens, token)

	return !s.now().After(exp), nil
}

// CheckHealth always succeeds for the in-memory store.
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}
