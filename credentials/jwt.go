package credentials

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apandit646/droploc/types"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoIdentity is returned when a token carries neither an email nor a subject.
var ErrNoIdentity = errors.New("token carries no actor identity")

// Claims are the fields read from the dispatch backend's access token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWT derives the actor identity from the access token itself.
//
// The signature is not verified: the client holds no key, and the server verifies
// every use. The token stops being offered once its exp claim has passed, which pauses
// heartbeats until the application installs a fresh one with Replace.
type JWT struct {
	now func() time.Time

	mu     sync.RWMutex
	token  string
	claims *Claims
}

var _ types.CredentialStore = (*JWT)(nil)

// NewJWT parses token.
//
// Parameters:
//   - token: Compact-serialized JWT as returned by the login endpoint
//   - now: Clock for expiry checks; nil means time.Now
//
// Returns:
//   - *JWT: Store exposing the token and its email (or subject) as actor identity
//   - error: Parse failure or ErrNoIdentity
func NewJWT(token string, now func() time.Time) (*JWT, error) {
	if now == nil {
		now = time.Now
	}
	s := &JWT{now: now}
	if err := s.Replace(token); err != nil {
		return nil, err
	}

	return s, nil
}

// Replace installs a new token, e.g. after a refresh. On error the old token is kept.
func (s *JWT) Replace(token string) error {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if claims.Email == "" && claims.Subject == "" {
		return ErrNoIdentity
	}

	s.mu.Lock()
	s.token, s.claims = token, claims
	s.mu.Unlock()

	return nil
}

// Token implements types.CredentialStore. An expired token is unavailable.
func (s *JWT) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.claims.ExpiresAt != nil && !s.now().Before(s.claims.ExpiresAt.Time) {
		return "", false
	}

	return s.token, true
}

// ActorID implements types.CredentialStore. The email claim wins over the subject.
func (s *JWT) ActorID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.claims.Email != "" {
		return s.claims.Email, true
	}

	return s.claims.Subject, true
}

// Role returns the role claim, parsed.
func (s *JWT) Role() (types.Role, error) {
	s.mu.RLock()
	role := s.claims.Role
	s.mu.RUnlock()

	return types.ParseRole(role)
}

// ExpiresAt returns the exp claim, or the zero time when absent.
func (s *JWT) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.claims.ExpiresAt == nil {
		return time.Time{}
	}

	return s.claims.ExpiresAt.Time
}
