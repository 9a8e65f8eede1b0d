package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything quill reads from config.toml.
type Config struct {
	APIURL             string
	RequestTimeout     time.Duration
	RequestsPerSecond  float64
	UploadMaxDimension int
	Theme              string
	Session            SessionConfig
	Log                LogConfig
}

// SessionConfig selects and configures the session store backend.
type SessionConfig struct {
	Backend       string // file, sqlite, redis or memory
	Path          string // directory for file, database path for sqlite
	Encrypt       bool
	KeyFile       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LogConfig controls the slog file sink.
type LogConfig struct {
	Level string
	File  string
}

// Session backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	defaultConfigPath         = "~/.config/quill/config.toml"
	defaultAPIURL             = "http://127.0.0.1:8000"
	defaultRequestTimeout     = 10 * time.Second
	defaultRequestsPerSecond  = 5
	defaultUploadMaxDimension = 1600
	defaultSessionDir         = "~/.local/share/quill"
	defaultSQLiteFile         = "session.db"
	defaultKeyFile            = "~/.config/quill/session.key"
	defaultRedisAddr          = "127.0.0.1:6379"
	defaultLogLevel           = "info"
	defaultLogFile            = "~/.local/state/quill/quill.log"
)

// Load locates and parses the quill config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	return raw.resolve()
}

type rawConfig struct {
	APIURL                string  `toml:"api_url"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RequestsPerSecond     float64 `toml:"requests_per_second"`
	UploadMaxDimension    int     `toml:"upload_max_dimension"`
	Theme                 string  `toml:"theme"`
	Session               struct {
		Backend       string `toml:"backend"`
		Path          string `toml:"path"`
		Encrypt       *bool  `toml:"encrypt"`
		KeyFile       string `toml:"key_file"`
		RedisAddr     string `toml:"redis_addr"`
		RedisPassword string `toml:"redis_password"`
		RedisDB       int    `toml:"redis_db"`
	} `toml:"session"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

func (r rawConfig) resolve() (Config, error) {
	cfg := Config{
		APIURL:             orDefault(r.APIURL, defaultAPIURL),
		RequestTimeout:     defaultRequestTimeout,
		RequestsPerSecond:  defaultRequestsPerSecond,
		UploadMaxDimension: defaultUploadMaxDimension,
		Theme:              strings.TrimSpace(r.Theme),
	}
	if r.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(r.RequestTimeoutSeconds) * time.Second
	}
	if r.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = r.RequestsPerSecond
	}
	if r.UploadMaxDimension > 0 {
		cfg.UploadMaxDimension = r.UploadMaxDimension
	}

	backend := strings.ToLower(orDefault(r.Session.Backend, BackendFile))
	switch backend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
	default:
		return Config{}, fmt.Errorf("parse config: unknown session backend %q", r.Session.Backend)
	}
	cfg.Session = SessionConfig{
		Backend:       backend,
		Encrypt:       true,
		KeyFile:       mustExpand(orDefault(r.Session.KeyFile, defaultKeyFile)),
		RedisAddr:     orDefault(r.Session.RedisAddr, defaultRedisAddr),
		RedisPassword: r.Session.RedisPassword,
		RedisDB:       r.Session.RedisDB,
	}
	if r.Session.Encrypt != nil {
		cfg.Session.Encrypt = *r.Session.Encrypt
	}
	sessionPath := strings.TrimSpace(r.Session.Path)
	if sessionPath == "" {
		sessionPath = defaultSessionDir
		if backend == BackendSQLite {
			sessionPath = defaultSessionDir + "/" + defaultSQLiteFile
		}
	}
	cfg.Session.Path = mustExpand(sessionPath)

	cfg.Log = LogConfig{
		Level: strings.ToLower(orDefault(r.Log.Level, defaultLogLevel)),
		File:  mustExpand(orDefault(r.Log.File, defaultLogFile)),
	}
	return cfg, nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
