package auth

import (
	"context"
	"sync"
	"time"

	"langgraph-chat/app/pkg/jwt"
)

// User is the display identity of the signed-in person
type User struct {
	ID             string   `json:"id"`
	FirstName      string   `json:"firstName,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	EmailAddresses []string `json:"emailAddresses"`
}

// DisplayName picks the friendliest available label
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0]
	}
	return "there"
}

// Identity is the authentication provider as seen by the chat client.
// Only IsLoaded and IsSignedIn gate access; the rest is display data.
type Identity interface {
	IsLoaded() bool
	IsSignedIn() bool
	User() (User, bool)
	Token(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
}

// TokenIdentity is backed by a bearer token issued elsewhere.
// Claims are read without verification; the backend is the one that verifies.
type TokenIdentity struct {
	mu     sync.RWMutex
	token  string
	claims *jwt.Claims
	now    func() time.Time
}

// NewTokenIdentity wraps token. An empty or unreadable token yields a signed-out identity.
func NewTokenIdentity(token string) *TokenIdentity {
	id := &TokenIdentity{now: time.Now}
	if token == "" {
		return id
	}
	claims, err := jwt.ParseUnverified(token)
	if err != nil {
		return id
	}
	id.token = token
	id.claims = claims
	return id
}

// IsLoaded is always true; the token is available synchronously
func (i *TokenIdentity) IsLoaded() bool { return true }

// IsSignedIn reports whether a non-expired token is held
func (i *TokenIdentity) IsSignedIn() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.claims == nil {
		return false
	}
	if exp := i.claims.ExpiresAt; exp != nil && !exp.After(i.now()) {
		return false
	}
	return true
}

// User returns the display claims of the token
func (i *TokenIdentity) User() (User, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.claims == nil {
		return User{}, false
	}
	u := User{ID: i.claims.UserID(), FirstName: i.claims.FirstName, ImageURL: i.claims.ImageURL}
	if i.claims.Email != "" {
		u.EmailAddresses = []string{i.claims.Email}
	}
	return u, true
}

// Token returns the bearer token, or "" once signed out
func (i *TokenIdentity) Token(context.Context) (string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token, nil
}

// SignOut forgets the token
func (i *TokenIdentity) SignOut(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.token = ""
	i.claims = nil
	return nil
}

// StaticIdentity is a fixed identity for development and tests
type StaticIdentity struct {
	mu       sync.Mutex
	Loaded   bool
	SignedIn bool
	Profile  User
	Bearer   string
	signOuts int
}

// IsLoaded implements Identity
func (s *StaticIdentity) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Loaded
}

// IsSignedIn implements Identity
func (s *StaticIdentity) IsSignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SignedIn
}

// User implements Identity
func (s *StaticIdentity) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Profile, s.SignedIn
}

// Token implements Identity
func (s *StaticIdentity) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Bearer, nil
}

// SignOut implements Identity
func (s *StaticIdentity) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SignedIn = false
	s.Bearer = ""
	s.signOuts++
	return nil
}

// SignOuts counts SignOut calls
func (s *StaticIdentity) SignOuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signOuts
}
