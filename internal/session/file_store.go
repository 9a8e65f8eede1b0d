package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// FileStore keeps one namespace in a TOML document on disk.
// The whole document is cached in memory and rewritten on every change.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string
}

// NewFileStore opens dir/<namespace>.toml. A missing file starts empty; an
// unreadable or corrupt one is logged and also starts empty.
func NewFileStore(dir, namespace string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file store: empty directory")
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("file store: empty namespace")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	fs := &FileStore{
		path:   filepath.Join(dir, strings.ToLower(namespace)+".toml"),
		logger: discardLogger(logger),
		values: make(map[string]string),
	}
	fs.load()
	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("session file unreadable, starting empty", "path", f.path, "error", err)
		}
		return
	}
	values := make(map[string]string)
	if err := toml.Unmarshal(data, &values); err != nil {
		f.logger.Warn("session file corrupt, starting empty", "path", f.path, "error", err)
		return
	}
	f.values = values
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := maps.Clone(f.values)
	next[key] = value
	if err := f.save(next); err != nil {
		return err
	}
	f.values = next
	return nil
}

func (f *FileStore) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	next := maps.Clone(f.values)
	delete(next, key)
	if err := f.save(next); err != nil {
		return err
	}
	f.values = next
	return nil
}

func (f *FileStore) Close() error { return nil }

// save replaces the file atomically via a temp file in the same directory.
func (f *FileStore) save(values map[string]string) error {
	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.toml")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
