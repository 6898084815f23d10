package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/coderonin/challenge"
	"github.com/c360studio/coderonin/config"
	"github.com/c360studio/coderonin/docs"
	"github.com/c360studio/coderonin/docs/docret"
	"github.com/c360studio/coderonin/events"
	"github.com/c360studio/coderonin/llm"
	"github.com/c360studio/coderonin/metrics"
	sabotageapi "github.com/c360studio/coderonin/processor/sabotage-api"
	"github.com/c360studio/coderonin/sabotage"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 15 * time.Second

// App wires configuration into the sabotage pipeline and its HTTP surface.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *docs.Store
	saboteur *sabotage.Saboteur
	catalog  *challenge.Catalog
	metrics  *metrics.Metrics
	closers  []func()
}

// NewApp builds every component named in cfg. Components whose credentials or URLs are
// missing are left out rather than failing startup.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		store:  docs.NewStore(logger),
	}

	if cfg.Docs.Dir != "" {
		n, err := a.store.LoadDir(cfg.Docs.Dir)
		if err != nil {
			return nil, fmt.Errorf("load docs dir: %w", err)
		}
		logger.Info("Loaded static docs", "dir", cfg.Docs.Dir, "files", n)
	}

	var fetcher docs.Fetcher
	if cfg.Docs.SearchAPIKey != "" {
		fetcher = docret.New(docret.Config{
			SearchURL:  cfg.Docs.SearchURL,
			APIKey:     cfg.Docs.SearchAPIKey,
			Sites:      cfg.Docs.Sites,
			MaxResults: cfg.Docs.MaxResults,
			Timeout:    cfg.Docs.FetchTimeout,
		}, docret.WithLogger(logger))
	} else {
		logger.Debug("No search key; live documentation tier disabled")
	}
	resolver := docs.NewResolver(a.store, fetcher, logger)

	opts := []sabotage.Option{
		sabotage.WithDocResolver(resolver),
		sabotage.WithGenerationParams(cfg.Generator.Temperature, cfg.Generator.MaxTokens),
		sabotage.WithLogger(logger),
	}

	client, err := newGenerator(cfg.Generator, logger)
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		logger.Warn("GROQ_API_KEY not set; sabotage will report unavailable")
	case err != nil:
		return nil, err
	default:
		opts = append(opts, sabotage.WithGenerator(client))
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		opts = append(opts, sabotage.WithObserver(a.metrics))
	}

	if cfg.Events.NATSURL != "" {
		pub, closeFn, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			// Events are best-effort; the game keeps working without them.
			logger.Warn("Sabotage events disabled", "url", cfg.Events.NATSURL, "error", err)
		} else {
			a.closers = append(a.closers, closeFn)
			opts = append(opts, sabotage.WithObserver(pub))
		}
	}

	a.saboteur = sabotage.New(opts...)

	catalog, err := challenge.Default()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load challenge catalog: %w", err)
	}
	a.catalog = catalog

	return a, nil
}

func newGenerator(cfg config.GeneratorConfig, logger *slog.Logger) (*llm.Client, error) {
	return llm.NewClient(llm.Endpoint{
		Provider: cfg.Provider,
		URL:      cfg.URL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}, llm.WithTimeout(cfg.Timeout), llm.WithLogger(logger))
}

// Saboteur returns the configured orchestrator.
func (a *App) Saboteur() *sabotage.Saboteur {
	return a.saboteur
}

// Handler returns the HTTP handler for the API server.
func (a *App) Handler() http.Handler {
	opts := []sabotageapi.Option{
		sabotageapi.WithCatalog(a.catalog),
		sabotageapi.WithCORSOrigin(a.cfg.Server.CORSOrigin),
		sabotageapi.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, sabotageapi.WithMetrics(a.cfg.Metrics.Path, a.metrics.Handler()))
	}
	return sabotageapi.NewServer(a.saboteur, opts...).Handler()
}

// Serve runs the HTTP server (and the docs watcher, if enabled) until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan error, 1)
	if a.cfg.Docs.Watch && a.cfg.Docs.Dir != "" {
		w, err := docs.NewWatcher(a.store, a.cfg.Docs.Dir, docs.DefaultDebounce, a.logger)
		if err != nil {
			return fmt.Errorf("start docs watcher: %w", err)
		}
		go func() { watchDone <- w.Run(ctx) }()
	} else {
		watchDone <- nil
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Listening", "addr", ln.Addr().String(), "sabotage_available", a.saboteur.Available())
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Graceful shutdown incomplete", "error", err)
		}
	}

	cancel()
	if err := <-watchDone; err != nil {
		a.logger.Warn("Docs watcher stopped with error", "error", err)
	}
	return nil
}

// Close releases external connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
