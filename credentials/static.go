// Package credentials provides read-only types.CredentialStore implementations.
//
// The engine never writes credentials. The application updates a store after login or
// token refresh, and the engine reads the current values at every use.
package credentials

import (
	"sync"

	"github.com/apandit646/droploc/types"
)

// Static holds a token and actor identity set by the application.
type Static struct {
	mu    sync.RWMutex
	token string
	actor string
}

var _ types.CredentialStore = (*Static)(nil)

// NewStatic creates a store. Empty values count as unavailable.
func NewStatic(token, actorID string) *Static {
	return &Static{token: token, actor: actorID}
}

// Token implements types.CredentialStore.
func (s *Static) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token, s.token != ""
}

// ActorID implements types.CredentialStore.
func (s *Static) ActorID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.actor, s.actor != ""
}

// Set replaces both values.
func (s *Static) Set(token, actorID string) {
	s.mu.Lock()
	s.token, s.actor = token, actorID
	s.mu.Unlock()
}

// Clear removes the token, as on logout. The actor identity is kept.
func (s *Static) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
