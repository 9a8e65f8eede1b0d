// Package config loads quill's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/quill/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - API endpoint: http://127.0.0.1:8000
//   - Request timeout: 10 seconds
//   - Request pacing: 5 requests per second
//   - Upload images: fit within 1600x1600 before sending
//   - Session backend: encrypted TOML files under ~/.local/share/quill
//   - Session key: ~/.config/quill/session.key
//   - Log file: ~/.local/state/quill/quill.log at level info
//
// # TOML Format
//
//	api_url = "https://blog.example.com"
//	request_timeout_seconds = 10
//	requests_per_second = 5
//	upload_max_dimension = 1600
//	theme = "Nightfox"
//
//	[session]
//	backend = "file"          # file | sqlite | redis | memory
//	path = "~/.local/share/quill"
//	encrypt = true
//	key_file = "~/.config/quill/session.key"
//	redis_addr = "127.0.0.1:6379"
//
//	[log]
//	level = "info"
//	file = "~/.local/state/quill/quill.log"
//
// All paths accept a leading tilde and are returned absolute.
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files, TOML
// parse errors and unknown session backends. A missing file is not an error.
package config
