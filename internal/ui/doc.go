// Package ui provides the Bubble Tea terminal interface for quill.
//
// # Package Structure
//
//   - app.go: Model, message routing, session expiry and Run
//   - auth.go: Sign-in and registration forms
//   - feed_view.go: Paginated post list driven by feed.Controller
//   - detail.go: Post detail with comments and author-only delete
//   - compose.go: New post form with image upload
//   - profile.go: Profile editing, sign-out and account deletion
//   - header.go: Status bar and per-view key hints
//   - theme.go, style_helpers.go: Palettes and background-safe rendering
//
// # Event Flow
//
//  1. Run() builds the Model and starts the program
//  2. waitForFeedEvent blocks on the controller's event channel and turns
//     each event into a message; it is re-armed after every event
//  3. A ticker reads state.Store so the header follows the session watcher
//  4. Account operations run as commands and report back with result messages
//
// # Session Expiry
//
// Any 401 from an authenticated operation, a SessionExpired feed event, or a
// watcher snapshot flagged SessionExpired clears the stored session and
// returns to the sign-in view with a notice. A rejected sign-in attempt is
// shown on the form instead.
//
// # Key Bindings
//
// Single-letter bindings only apply outside forms so typing is never
// intercepted. Forms use tab/shift+tab to move, enter to advance or submit,
// and esc to leave. ctrl+c always quits.
package ui
