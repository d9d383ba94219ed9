// Package session implements the browser-side half of the auth
// protocol for Go callers: an in-memory access-token store, a
// single-flight refresh coordinator, a retrying HTTP transport and a
// startup gate.
package session

import "sync"

// Store holds the current access token for one client process. It is
// an explicit dependency handed to the transport and refresher, not a
// package-level singleton. Authentication status is derived strictly
// from token presence so the two can never diverge.
type Store struct {
	mu          sync.RWMutex
	accessToken string
	loading     bool
}

// NewStore starts in the loading state until the first refresh attempt
// settles (see Gate).
func NewStore() *Store {
	return &Store{loading: true}
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Store) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}
