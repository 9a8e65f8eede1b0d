package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/quillfeed/quill/internal/session"
)

// Snapshot represents the latest account health known to the UI.
type Snapshot struct {
	User                session.User
	HasProfile          bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed checks
	SessionExpired      bool
}

// IsOffline returns true when the API has been unreachable for multiple checks.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update records the outcome of a profile check. When err is non-nil the
// previous profile is kept but the error is recorded for visibility.
func (s *Store) Update(user *session.User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if user != nil {
		s.snapshot.User = *user
		s.snapshot.HasProfile = true
	} else {
		s.snapshot.User = session.User{}
		s.snapshot.HasProfile = false
	}
	s.snapshot.SessionExpired = false
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// MarkExpired records that the server rejected the token. The cached profile
// is dropped; failures are not counted because retrying cannot help.
func (s *Store) MarkExpired(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.User = session.User{}
	s.snapshot.HasProfile = false
	s.snapshot.SessionExpired = true
	s.snapshot.LastError = err
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Reset returns the store to its zero state, for example after sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
