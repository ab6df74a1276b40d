package cache

import (
	"context"
	"sync"
	"time"
)

// TokenStore tracks issued refresh tokens so logout revokes them
// server-side instead of relying on cookie deletion alone.
type TokenStore interface {
	Save(ctx context.Context, username, refreshToken string, ttl time.Duration) error
	Validate(ctx context.Context, username, refreshToken string) (bool, error)
	Revoke(ctx context.Context, username string) error
}

// MemoryTokenStore is the single-process TokenStore used when Redis is not
// configured and in tests.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	value     string
	expiresAt time.Time
}

// NewMemoryTokenStore creates an empty in-process token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryToken)}
}

func (s *MemoryTokenStore) Save(ctx context.Context, username, refreshToken string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[username] = memoryToken{value: refreshToken, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Validate(ctx context.Context, username, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[username]
	if !ok || time.Now().After(token.expiresAt) {
		delete(s.tokens, username)
		return false, nil
	}
	return token.value == refreshToken, nil
}

func (s *MemoryTokenStore) Revoke(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, username)
	return nil
}
