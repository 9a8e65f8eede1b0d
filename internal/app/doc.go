// Package app is the composition root for quill.
//
// # Overview
//
// Run wires configuration, logging, session storage, the API client, the
// feed controller and the UI, then blocks until the user quits:
//
//  1. Load ~/.config/quill/config.toml (defaults when missing)
//  2. Open the slog file sink
//  3. Open the AUTH and PREFS namespaces on the configured backend,
//     sealing AUTH when encryption is enabled
//  4. Build the rate-limited API client and the account service
//  5. Start the session watcher goroutine
//  6. Create the feed controller and run the Bubble Tea program
//
// # Session Watcher
//
// StartWatcher re-checks the stored token against the profile endpoint and
// publishes the outcome to state.Store. A 401 marks the session expired and
// the UI reacts by sending the user to sign in. Other failures back off
// exponentially up to maxBackoff so an unreachable server is not hammered.
// Checks are skipped while signed out.
//
// # Store Backends
//
//   - file: one TOML file per namespace (default)
//   - sqlite: a single database with goose migrations
//   - redis: keys under quill:<namespace>:
//   - memory: nothing survives a restart
package app
