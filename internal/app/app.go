package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/quillfeed/quill/internal/account"
	"github.com/quillfeed/quill/internal/blogapi"
	"github.com/quillfeed/quill/internal/config"
	"github.com/quillfeed/quill/internal/feed"
	"github.com/quillfeed/quill/internal/logging"
	"github.com/quillfeed/quill/internal/session"
	"github.com/quillfeed/quill/internal/state"
	"github.com/quillfeed/quill/internal/ui"
)

// Options configure the quill application.
type Options struct {
	ConfigPath string
	APIURL     string // overrides api_url from the config file
	CheckEvery int    // seconds between session checks; zero uses default
}

// Run boots the quill TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if url := strings.TrimSpace(opts.APIURL); url != "" {
		cfg.APIURL = url
	}

	logger, logCloser, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()
	logger.Info("starting quill", "api_url", cfg.APIURL, "session_backend", cfg.Session.Backend)

	stores, err := openStores(ctx, cfg.Session, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("close session store", "error", err)
		}
	}()

	client, err := blogapi.NewClient(cfg.APIURL, blogapi.Options{
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	sess := session.New(stores.auth)
	service := account.NewService(client, sess, logger)
	store := &state.Store{}

	interval := defaultCheckInterval
	if opts.CheckEvery > 0 {
		interval = time.Duration(opts.CheckEvery) * time.Second
	}
	StartWatcher(ctx, store, service, interval, logger)

	posts := feed.New[blogapi.Post](blogapi.PostFetcher(client), sess, feed.WithLogger(logger))
	defer posts.Close()

	return ui.Run(ui.Options{
		Context:            ctx,
		Account:            service,
		Feed:               posts,
		Store:              store,
		Prefs:              stores.prefs,
		ThemeName:          themeName(ctx, stores.prefs, cfg.Theme, logger),
		UploadMaxDimension: cfg.UploadMaxDimension,
		Logger:             logger,
	})
}

// themeName prefers the theme saved from the UI over the configured one.
func themeName(ctx context.Context, prefs session.Store, configured string, logger *slog.Logger) string {
	if saved, ok := prefs.Get(ctx, ui.PrefTheme); ok && saved != "" {
		if slices.Contains(ui.ThemeNames(), saved) {
			logger.Debug("using saved theme", "theme", saved)
			return saved
		}
		logger.Warn("ignoring unknown saved theme", "theme", saved)
	}
	if configured != "" {
		if slices.Contains(ui.ThemeNames(), configured) {
			return configured
		}
		logger.Warn("unknown theme in config", "theme", configured, "available", ui.ThemeNames())
	}
	return ui.DefaultTheme
}
