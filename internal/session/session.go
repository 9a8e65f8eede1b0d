package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Keys in the AUTH namespace.
const (
	KeyToken     = "TOKEN"
	KeyUserName  = "USER:name"
	KeyUserEmail = "USER:email"
)

// ErrSignedOut reports that the session was cleared or replaced while a
// request made with its token was in flight.
var ErrSignedOut = errors.New("session ended during request")

// User is the identity cached alongside the token.
type User struct {
	Name  string
	Email string
}

// Session reads and writes the authentication values of a Store.
// Every read goes to the store; writes are serialized so a late profile
// response cannot interleave with sign-out.
type Session struct {
	mu    sync.Mutex
	store Store
}

// New wraps store, which should be scoped to the AUTH namespace.
func New(store Store) *Session {
	return &Session{store: store}
}

// Token returns the bearer token. An empty stored value counts as absent.
func (s *Session) Token(ctx context.Context) (string, bool) {
	token, ok := s.store.Get(ctx, KeyToken)
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated(ctx context.Context) bool {
	_, ok := s.Token(ctx)
	return ok
}

// User returns the cached identity; missing fields are empty.
func (s *Session) User(ctx context.Context) User {
	name, _ := s.store.Get(ctx, KeyUserName)
	email, _ := s.store.Get(ctx, KeyUserEmail)
	return User{Name: name, Email: email}
}

// SignIn stores a fresh token and the identity that came with it.
func (s *Session) SignIn(ctx context.Context, token string, user User) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("sign in: empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return s.setUserLocked(ctx, user)
}

// SetUser updates the cached identity. Empty fields are left untouched.
func (s *Session) SetUser(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setUserLocked(ctx, user)
}

// RefreshUser updates the cached identity only while token is still the
// stored token. It returns ErrSignedOut otherwise and writes nothing.
func (s *Session) RefreshUser(ctx context.Context, token string, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.store.Get(ctx, KeyToken); !ok || current != token {
		return ErrSignedOut
	}
	return s.setUserLocked(ctx, user)
}

func (s *Session) setUserLocked(ctx context.Context, user User) error {
	if user.Name != "" {
		if err := s.store.Set(ctx, KeyUserName, user.Name); err != nil {
			return fmt.Errorf("store user name: %w", err)
		}
	}
	if user.Email != "" {
		if err := s.store.Set(ctx, KeyUserEmail, user.Email); err != nil {
			return fmt.Errorf("store user email: %w", err)
		}
	}
	return nil
}

// Clear removes the token and the cached identity.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, key := range []string{KeyToken, KeyUserName, KeyUserEmail} {
		if err := s.store.Clear(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
