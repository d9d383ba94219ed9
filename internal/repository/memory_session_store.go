package repository

import (
	"context"
	"sync"
	"time"

	"github.com/loandesk/loandesk/internal/apperr"
	"github.com/loandesk/loandesk/internal/models"
)

// MemorySessionStore is a process-local SessionStore for tests and
// single-node deployments. A single mutex serializes all mutations, so
// rotation is a true compare-and-swap on the stored value. Blacklist
// entries are dropped lazily once the revoked token would have expired
// anyway.
type MemorySessionStore struct {
	mu        sync.Mutex
	byUser    map[string]models.RefreshTokenData
	byToken   map[string]string // token -> userID
	blacklist map[string]time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byUser:    make(map[string]models.RefreshTokenData),
		byToken:   make(map[string]string),
		blacklist: make(map[string]time.Time),
	}
}

func (s *MemorySessionStore) PutRefreshToken(_ context.Context, data models.RefreshTokenData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[data.UserID]; ok {
		delete(s.byToken, old.Token)
	}
	s.byUser[data.UserID] = data
	s.byToken[data.Token] = data.UserID
	return nil
}

func (s *MemorySessionStore) RotateRefreshToken(_ context.Context, oldToken, newToken string, expiresAt time.Time) (*models.RefreshTokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byToken[oldToken]
	if !ok {
		return nil, apperr.ErrInvalidRefreshToken
	}

	current, ok := s.byUser[userID]
	if !ok || current.Token != oldToken || time.Now().After(current.ExpiresAt) {
		return nil, apperr.ErrInvalidRefreshToken
	}

	next := models.RefreshTokenData{
		Token:     newToken,
		UserID:    current.UserID,
		Email:     current.Email,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	delete(s.byToken, oldToken)
	s.byUser[userID] = next
	s.byToken[newToken] = userID
	return &next, nil
}

func (s *MemorySessionStore) DeleteRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byToken[token]
	if !ok {
		return nil
	}
	delete(s.byToken, token)
	delete(s.byUser, userID)
	return nil
}

func (s *MemorySessionStore) BlacklistAccessToken(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().After(expiresAt) {
		return nil
	}
	s.blacklist[token] = expiresAt
	s.evictExpiredLocked()
	return nil
}

func (s *MemorySessionStore) IsBlacklisted(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.blacklist[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.blacklist, token)
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) evictExpiredLocked() {
	now := time.Now()
	for token, expiresAt := range s.blacklist {
		if now.After(expiresAt) {
			delete(s.blacklist, token)
		}
	}
}
