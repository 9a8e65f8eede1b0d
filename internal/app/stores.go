package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/quillfeed/quill/internal/config"
	"github.com/quillfeed/quill/internal/session"
)

// stores holds the AUTH and PREFS namespaces of the configured backend.
type stores struct {
	auth  session.Store
	prefs session.Store
	redis *redis.Client
}

// openStores builds both namespaces. The AUTH namespace is sealed when
// encryption is enabled; preferences are stored in the clear.
func openStores(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger) (*stores, error) {
	s := &stores{}
	if cfg.Backend == config.BackendRedis {
		client, err := session.DialRedis(ctx, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		s.redis = client
	}

	auth, err := s.open(ctx, cfg, session.Namespace, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.auth = auth

	if cfg.Encrypt {
		key, err := session.LoadOrCreateKey(cfg.KeyFile)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		sealed, err := session.NewSealedStore(auth, key, session.Namespace, logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.auth = sealed
	}

	prefs, err := s.open(ctx, cfg, session.PrefsNamespace, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.prefs = prefs
	return s, nil
}

func (s *stores) open(ctx context.Context, cfg config.SessionConfig, namespace string, logger *slog.Logger) (session.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return session.NewMemoryStore(), nil
	case config.BackendFile:
		return session.NewFileStore(cfg.Path, namespace, logger)
	case config.BackendSQLite:
		return session.NewSQLiteStore(ctx, cfg.Path, namespace, logger)
	case config.BackendRedis:
		return session.NewRedisStore(s.redis, namespace, false, logger), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// Close releases every store and the shared Redis client.
func (s *stores) Close() error {
	var errs []error
	if s.auth != nil {
		errs = append(errs, s.auth.Close())
	}
	if s.prefs != nil {
		errs = append(errs, s.prefs.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
