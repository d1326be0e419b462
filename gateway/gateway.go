// Package gateway composes cache, router, hub, and control into the
// offline-first caching gateway and exposes them over HTTP.
//
// The gateway initializes from configuration via New, creating all
// subsystems internally. Functional options allow test overrides of any
// subsystem.
//
//	g, err := gateway.New(ctx, cfg)
//	http.ListenAndServe(cfg.Listen, g.Handler())
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/offlinekit/edgecache/cache"
	"github.com/offlinekit/edgecache/control"
	"github.com/offlinekit/edgecache/fetch"
	"github.com/offlinekit/edgecache/hub"
	"github.com/offlinekit/edgecache/observability"
	"github.com/offlinekit/edgecache/router"
)

// Option configures a Gateway after config-driven initialization.
// Applied by New after cold start — overrides replace config-created
// defaults.
type Option func(*Gateway)

// WithStore overrides the config-created cache store.
func WithStore(s cache.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithFetcher overrides the config-created upstream client.
func WithFetcher(f fetch.Fetcher) Option {
	return func(g *Gateway) { g.fetcher = f }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// Gateway is the composed runtime: one router over shared cache partitions,
// a notification hub, and the control dispatcher.
type Gateway struct {
	cfg    *Config
	logger *slog.Logger

	store    cache.Store
	fetcher  fetch.Fetcher
	observer observability.Observer

	parts      *cache.Partitions
	router     *router.Router
	hub        *hub.Hub
	dispatcher *control.Dispatcher
}

// New creates a Gateway from configuration. Subsystems are initialized from
// their respective config sections; options applied before subsystem wiring
// can override the store, fetcher, observer, and logger for testing.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Gateway, error) {
	if cfg.Upstream == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}

	g := &Gateway{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.store == nil {
		store, err := cache.NewStore(&cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		g.store = store
	}
	if g.fetcher == nil {
		g.fetcher = fetch.NewClient(cfg.Router.FetchTimeout)
	}
	if g.observer == nil {
		g.observer = observability.NewMultiObserver(
			observability.NewSlogObserver(g.logger),
			observability.TraceObserver{},
		)
	}

	g.parts = cache.NewPartitions(g.store)
	if err := g.parts.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warm cache partitions: %w", err)
	}

	g.router = router.New(&cfg.Router,
		router.WithFetcher(g.fetcher),
		router.WithPartitions(g.parts),
		router.WithObserver(g.observer),
	)

	g.hub = hub.New(ctx, cfg.Hub, g.logger)
	g.dispatcher = control.NewDispatcher(g.router, g.hub, g.observer)

	return g, nil
}

// Router returns the strategy router.
func (g *Gateway) Router() *router.Router {
	return g.router
}

// Hub returns the client notification hub.
func (g *Gateway) Hub() *hub.Hub {
	return g.hub
}

// Dispatcher returns the control-plane dispatcher.
func (g *Gateway) Dispatcher() *control.Dispatcher {
	return g.dispatcher
}

// WatchConfig starts a config-file watcher that re-applies the strategy
// from disk whenever the file changes. Blocks until ctx is done.
func (g *Gateway) WatchConfig(ctx context.Context, path string) error {
	watcher, err := control.NewWatcher(path, g.logger, func(ctx context.Context) {
		loaded, err := LoadConfig(path)
		if err != nil {
			g.logger.WarnContext(ctx, "config reload failed", slog.String("error", err.Error()))
			return
		}
		if loaded.Router.Strategy == g.router.Strategy().String() {
			return
		}
		if _, err := g.dispatcher.Dispatch(ctx, control.Command{
			Kind:     control.KindSetStrategy,
			Strategy: loaded.Router.Strategy,
		}); err != nil {
			g.logger.WarnContext(ctx, "strategy reload failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

// Shutdown disconnects hub subscribers. The HTTP server owns its own
// shutdown.
func (g *Gateway) Shutdown() {
	g.hub.Shutdown()
}
