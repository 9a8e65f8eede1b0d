// Package account performs the authenticated mutations and reads that sit
// beside the feed: sign in and out, profile changes, and post management.
package account

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/blogapi"
	"github.com/quillfeed/quill/internal/session"
)

// Service keeps the session in step with account calls.
//
// Every authenticated method fails with an Unauthorized error, without a
// network call, when no token is stored. A 401 from the server is returned as
// is; the caller decides when to clear the session.
type Service struct {
	api     blogapi.API
	session *session.Session
	logger  *slog.Logger
}

// NewService wires api and sess together. logger may be nil.
func NewService(api blogapi.API, sess *session.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{api: api, session: sess, logger: logger}
}

// Session exposes the session the service writes to.
func (s *Service) Session() *session.Session {
	return s.session
}

func (s *Service) token(ctx context.Context, op string) (string, error) {
	token, ok := s.session.Token(ctx)
	if !ok {
		return "", apierr.Unauthenticated(op)
	}
	return token, nil
}

// Login signs in and stores the token and identity.
func (s *Service) Login(ctx context.Context, email, password string) (session.User, error) {
	resp, err := s.api.Login(ctx, blogapi.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return session.User{}, err
	}
	return s.signIn(ctx, resp, email)
}

// Register creates an account and signs in with it.
func (s *Service) Register(ctx context.Context, reg blogapi.Registration) (session.User, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	resp, err := s.api.Register(ctx, reg)
	if err != nil {
		return session.User{}, err
	}
	if resp.User.Name == "" {
		resp.User.Name = reg.Name
	}
	return s.signIn(ctx, resp, reg.Email)
}

func (s *Service) signIn(ctx context.Context, resp blogapi.AuthResponse, email string) (session.User, error) {
	if strings.TrimSpace(resp.Token) == "" {
		return session.User{}, apierr.Malformed("sign in", 200, errMissingToken)
	}
	user := session.User{Name: resp.User.Name, Email: resp.User.Email}
	if user.Email == "" {
		user.Email = strings.TrimSpace(email)
	}
	if err := s.session.SignIn(ctx, resp.Token, user); err != nil {
		return session.User{}, err
	}
	s.logger.Info("signed in", "email", user.Email)
	return s.session.User(ctx), nil
}

// Logout revokes the token on the server when possible and always clears
// the local session.
func (s *Service) Logout(ctx context.Context) error {
	if token, ok := s.session.Token(ctx); ok {
		if err := s.api.Logout(ctx, token); err != nil {
			s.logger.Warn("server logout failed", "error", err)
		}
	}
	if err := s.session.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("signed out")
	return nil
}

// Profile fetches the current user and refreshes the cached identity.
func (s *Service) Profile(ctx context.Context) (session.User, error) {
	token, err := s.token(ctx, "get user")
	if err != nil {
		return session.User{}, err
	}
	user, err := s.api.GetUser(ctx, token)
	if err != nil {
		return session.User{}, err
	}
	cached := session.User{Name: user.Name, Email: user.Email}
	if err := s.session.RefreshUser(ctx, token, cached); err != nil {
		return session.User{}, fmt.Errorf("get user: %w", err)
	}
	return s.session.User(ctx), nil
}

// UpdateProfile changes name, email and optionally the password.
func (s *Service) UpdateProfile(ctx context.Context, update blogapi.UserUpdate) (session.User, error) {
	token, err := s.token(ctx, "update user")
	if err != nil {
		return session.User{}, err
	}
	update.Name = strings.TrimSpace(update.Name)
	update.Email = strings.TrimSpace(update.Email)
	user, err := s.api.UpdateUser(ctx, token, update)
	if err != nil {
		return session.User{}, err
	}
	cached := session.User{Name: user.Name, Email: user.Email}
	if cached.Name == "" {
		cached.Name = update.Name
	}
	if cached.Email == "" {
		cached.Email = update.Email
	}
	if err := s.session.RefreshUser(ctx, token, cached); err != nil {
		return session.User{}, fmt.Errorf("update user: %w", err)
	}
	return s.session.User(ctx), nil
}

// DeleteAccount deletes the user on the server and clears the session.
func (s *Service) DeleteAccount(ctx context.Context) error {
	token, err := s.token(ctx, "delete user")
	if err != nil {
		return err
	}
	if err := s.api.DeleteUser(ctx, token); err != nil {
		return err
	}
	s.logger.Info("account deleted")
	return s.session.Clear(ctx)
}
