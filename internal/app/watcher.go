package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/session"
	"github.com/quillfeed/quill/internal/state"
)

const (
	defaultCheckInterval = 15 * time.Second
	maxBackoff           = 30 * time.Second
)

// profileChecker is the part of account.Service the watcher needs.
type profileChecker interface {
	Profile(ctx context.Context) (session.User, error)
	Session() *session.Session
}

// StartWatcher launches a background goroutine that verifies the session
// against the profile endpoint. It returns immediately.
func StartWatcher(ctx context.Context, store *state.Store, checker profileChecker, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	go func() {
		for {
			wait := check(ctx, store, checker, interval, logger)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// check runs one verification and returns how long to wait before the next.
func check(ctx context.Context, store *state.Store, checker profileChecker, interval time.Duration, logger *slog.Logger) time.Duration {
	if !checker.Session().Authenticated(ctx) {
		return interval
	}
	user, err := checker.Profile(ctx)
	switch {
	case err == nil:
		store.Update(&user, nil)
		return interval
	case errors.Is(err, session.ErrSignedOut):
		logger.Debug("signed out during session check")
		return interval
	case apierr.IsUnauthorized(err):
		store.MarkExpired(err)
		logger.Info("session rejected by server")
		return interval
	case ctx.Err() != nil:
		return interval
	default:
		store.Update(nil, err)
		failures := store.Snapshot().ConsecutiveFailures
		wait := calculateBackoff(failures, interval)
		logger.Warn("session check failed", "error", err, "failures", failures, "retry_in", wait)
		return wait
	}
}

// calculateBackoff doubles base for every consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
