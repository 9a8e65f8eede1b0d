package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/quillfeed/quill/internal/config"
	"github.com/quillfeed/quill/internal/logging"
	"github.com/quillfeed/quill/internal/session"
	"github.com/quillfeed/quill/internal/ui"
)

func TestOpenStores_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			path := dir
			if backend == config.BackendSQLite {
				path = filepath.Join(dir, "session.db")
			}
			cfg := config.SessionConfig{
				Backend: backend,
				Path:    path,
				Encrypt: true,
				KeyFile: filepath.Join(dir, "session.key"),
			}
			ctx := context.Background()

			s, err := openStores(ctx, cfg, logging.Discard())
			if err != nil {
				t.Fatalf("openStores: %v", err)
			}
			defer s.Close()

			if err := s.auth.Set(ctx, session.KeyToken, "tok"); err != nil {
				t.Fatalf("auth Set: %v", err)
			}
			if err := s.prefs.Set(ctx, ui.PrefTheme, "Slate"); err != nil {
				t.Fatalf("prefs Set: %v", err)
			}
			if got, ok := s.auth.Get(ctx, session.KeyToken); !ok || got != "tok" {
				t.Fatalf("auth Get = %q, %v", got, ok)
			}
			if _, ok := s.prefs.Get(ctx, session.KeyToken); ok {
				t.Fatal("namespaces share keys")
			}
		})
	}
}

func TestOpenStores_Redis(t *testing.T) {
	srv := miniredis.RunT(t)
	dir := t.TempDir()
	cfg := config.SessionConfig{
		Backend:   config.BackendRedis,
		RedisAddr: srv.Addr(),
		Encrypt:   true,
		KeyFile:   filepath.Join(dir, "session.key"),
	}
	ctx := context.Background()

	s, err := openStores(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	if err := s.auth.Set(ctx, session.KeyToken, "plain-token"); err != nil {
		t.Fatalf("auth Set: %v", err)
	}
	if err := s.prefs.Set(ctx, ui.PrefTheme, "Slate"); err != nil {
		t.Fatalf("prefs Set: %v", err)
	}

	raw, err := srv.Get("quill:auth:" + session.KeyToken)
	if err != nil {
		t.Fatalf("raw token: %v", err)
	}
	if raw == "plain-token" {
		t.Fatal("token stored in the clear")
	}
	if theme, _ := srv.Get("quill:prefs:" + ui.PrefTheme); theme != "Slate" {
		t.Fatalf("prefs theme = %q, want Slate", theme)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenStores_RedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := openStores(context.Background(), config.SessionConfig{Backend: config.BackendRedis, RedisAddr: addr}, logging.Discard())
	if err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}

func TestOpenStores_SealsOnlyAuth(t *testing.T) {
	dir := t.TempDir()
	cfg := config.SessionConfig{
		Backend: config.BackendFile,
		Path:    dir,
		Encrypt: true,
		KeyFile: filepath.Join(dir, "keys", "session.key"),
	}
	ctx := context.Background()

	s, err := openStores(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	if err := s.auth.Set(ctx, session.KeyToken, "plain-token"); err != nil {
		t.Fatalf("auth Set: %v", err)
	}
	if err := s.prefs.Set(ctx, ui.PrefTheme, "Kanagawa"); err != nil {
		t.Fatalf("prefs Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	auth, err := os.ReadFile(filepath.Join(dir, "auth.toml"))
	if err != nil {
		t.Fatalf("read auth file: %v", err)
	}
	if strings.Contains(string(auth), "plain-token") {
		t.Fatal("token stored in the clear")
	}
	prefs, err := os.ReadFile(filepath.Join(dir, "prefs.toml"))
	if err != nil {
		t.Fatalf("read prefs file: %v", err)
	}
	if !strings.Contains(string(prefs), "Kanagawa") {
		t.Fatalf("prefs file = %q, want plain theme", prefs)
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		t.Fatalf("key file not created: %v", err)
	}

	// Reopening with the same key reads the token back.
	s, err = openStores(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got, ok := s.auth.Get(ctx, session.KeyToken); !ok || got != "plain-token" {
		t.Fatalf("auth Get after reopen = %q, %v", got, ok)
	}
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	_, err := openStores(context.Background(), config.SessionConfig{Backend: "etcd"}, logging.Discard())
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestThemeName_PrefersSavedPreference(t *testing.T) {
	ctx := context.Background()
	prefs := session.NewMemoryStore()

	if got := themeName(ctx, prefs, "", logging.Discard()); got != ui.DefaultTheme {
		t.Fatalf("themeName = %q, want default", got)
	}
	if got := themeName(ctx, prefs, "Slate", logging.Discard()); got != "Slate" {
		t.Fatalf("themeName = %q, want configured Slate", got)
	}
	if err := prefs.Set(ctx, ui.PrefTheme, "Kanagawa"); err != nil {
		t.Fatal(err)
	}
	if got := themeName(ctx, prefs, "Slate", logging.Discard()); got != "Kanagawa" {
		t.Fatalf("themeName = %q, want saved Kanagawa", got)
	}
}

func TestThemeName_SkipsUnknownNames(t *testing.T) {
	ctx := context.Background()
	prefs := session.NewMemoryStore()

	if got := themeName(ctx, prefs, "Solarized", logging.Discard()); got != ui.DefaultTheme {
		t.Fatalf("themeName = %q, want default for unknown configured theme", got)
	}
	if err := prefs.Set(ctx, ui.PrefTheme, "Retired"); err != nil {
		t.Fatal(err)
	}
	if got := themeName(ctx, prefs, "Slate", logging.Discard()); got != "Slate" {
		t.Fatalf("themeName = %q, want configured Slate after unknown saved theme", got)
	}
}
