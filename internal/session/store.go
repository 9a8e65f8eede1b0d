package session

import (
	"context"
	"io"
	"log/slog"
)

// Namespaces used by quill.
const (
	Namespace      = "AUTH"
	PrefsNamespace = "PREFS"
)

// Store is a namespace-scoped key/value store.
//
// Get never fails: a missing key and an unreadable backend both report absent.
// Set overwrites and is complete when it returns. Clear of an absent key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
	Close() error
}

func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
