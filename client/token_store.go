package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenPair holds the current access/refresh credential pair.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenStore is the process-wide holder of the credential pair. It is written
// by login, refresh and logout, and read before every outbound call. It is
// constructed at session start and injected; there is no package-level
// instance.
type TokenStore struct {
	mu       sync.RWMutex
	pair     TokenPair
	onLogout []func()
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Set replaces the stored pair.
func (s *TokenStore) Set(pair TokenPair) {
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
}

// Pair returns the stored pair and whether an access credential is present.
func (s *TokenStore) Pair() (TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.pair.Access != ""
}

// Clear drops the stored pair without firing logout hooks.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.pair = TokenPair{}
	s.mu.Unlock()
}

// OnLogout registers a hook fired when a forced logout clears the store.
func (s *TokenStore) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Logout clears the store and fires registered hooks. Calling it on an
// already-empty store is a no-op, so concurrent forced logouts notify once.
func (s *TokenStore) Logout() {
	s.mu.Lock()
	if s.pair == (TokenPair{}) {
		s.mu.Unlock()
		return
	}
	s.pair = TokenPair{}
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// AccessExpiry reports the exp claim of the stored access token. The token is
// parsed without signature verification; the server remains the authority on
// validity.
func (s *TokenStore) AccessExpiry() (time.Time, error) {
	pair, ok := s.Pair()
	if !ok {
		return time.Time{}, fmt.Errorf("no access token held")
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(pair.Access, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
