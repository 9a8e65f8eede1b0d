// Package state provides thread-safe account health shared between the
// session watcher and the UI.
//
// # Overview
//
// The watcher periodically verifies the stored token against the profile
// endpoint and records the outcome here. The UI reads snapshots on its own
// schedule to render the status bar and to notice an expired session.
//
//	Producer (watcher):            Consumer (UI):
//	GetUser() -> store.Update()    store.Snapshot() -> render
//	401       -> store.MarkExpired()
//
// # Update Semantics
//
//	// Success: replace the profile, clear error and failure count
//	store.Update(&user, nil)
//
//	// Failure: keep the old profile, record the error, count it
//	store.Update(nil, err)
//
//	// Rejected token: drop the profile and flag the session
//	store.MarkExpired(err)
//
// The UI keeps showing the last known identity while the API is unreachable,
// and IsOffline turns true after two consecutive failures.
//
// # Defensive Copying
//
// Snapshot returns the struct by value and re-wraps LastError so that callers
// never share mutable state with the store. Wrapping keeps errors.Is working.
//
// # Testing Considerations
//
// The zero Store is ready to use.
package state
