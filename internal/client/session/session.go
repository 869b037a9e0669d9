// Package session holds the whistleblower's bearer token for the lifetime of
// the client process. The token is never written to disk.
package session

import "sync"

// Session is an in-memory token holder shared by the command loop, the
// poller and the push watcher.
type Session struct {
	mu    sync.RWMutex
	token string
}

func New() *Session {
	return &Session{}
}

// Token returns the current access token or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the token, which is all a logout does on the client.
func (s *Session) Clear() {
	s.SetToken("")
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}
