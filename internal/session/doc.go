// Package session persists the bearer token and cached identity.
//
// Values live in a Store scoped to one namespace ("AUTH" for credentials,
// "PREFS" for UI preferences). Backends:
//
//   - MemoryStore: process memory, used by tests and backend = "memory"
//   - FileStore: one TOML document per namespace, replaced atomically
//   - SQLiteStore: a session_values table migrated with goose
//   - RedisStore: keys prefixed with quill:<namespace>:
//
// SealedStore wraps any of them and encrypts values with NaCl secretbox.
//
// Session is the typed view over the AUTH namespace. It is the token source
// for the feed controller and the account service, and it is the only place
// that writes the TOKEN and USER:* keys.
package session
