package router

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/offlinekit/edgecache/cache"
	"github.com/offlinekit/edgecache/fetch"
	"github.com/offlinekit/edgecache/observability"
)

// Option configures a Router after config-driven initialization.
// Applied by New after defaults — overrides replace config-created defaults.
type Option func(*Router)

// WithFetcher overrides the config-created upstream client.
func WithFetcher(f fetch.Fetcher) Option {
	return func(r *Router) { r.fetcher = f }
}

// WithPartitions overrides the default in-memory cache partitions.
func WithPartitions(ps *cache.Partitions) Option {
	return func(r *Router) { r.parts = ps }
}

// WithFallback overrides the built-in offline page.
func WithFallback(f *Fallback) Option {
	return func(r *Router) { r.fallback = f }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(r *Router) { r.observer = o }
}

// Router resolves intercepted requests through the active caching strategy.
// Handle never returns an error: network failures fall back to cache, cache
// misses fall back to network, and when both fail the offline payload is
// returned. Cache-write failures are reported to the observer and swallowed.
type Router struct {
	fetcher   fetch.Fetcher
	parts     *cache.Partitions
	partition string
	fallback  *Fallback
	observer  observability.Observer

	strategy Strategy
	mu       sync.RWMutex

	revalidations singleflight.Group
}

// New creates a Router from configuration. An unrecognized strategy name in
// the config fails closed to the default. Functional options applied after
// initialization can override any collaborator for testing.
func New(cfg *Config, opts ...Option) *Router {
	strategy, _ := ParseStrategy(cfg.Strategy)

	partition := cfg.Partition
	if partition == "" {
		partition = defaultPartition
	}

	r := &Router{
		fetcher:   fetch.NewClient(cfg.FetchTimeout),
		parts:     cache.NewPartitions(cache.NewMemStore()),
		partition: partition,
		fallback:  DefaultFallback(),
		observer:  observability.NewSlogObserver(slog.Default()),
		strategy:  strategy,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Strategy returns the currently active strategy.
func (r *Router) Strategy() Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategy
}

// SetStrategy atomically replaces the active strategy, taking effect on the
// next Handle call. Unrecognized names fail closed to the default. Returns
// the strategy that is now in effect.
func (r *Router) SetStrategy(ctx context.Context, name string) Strategy {
	strategy, known := ParseStrategy(name)

	r.mu.Lock()
	previous := r.strategy
	r.strategy = strategy
	r.mu.Unlock()

	r.observer.OnEvent(ctx, observability.NewEvent(
		EventStrategyChange, observability.LevelInfo, "router.SetStrategy",
		map[string]any{
			"strategy":   strategy.String(),
			"previous":   previous.String(),
			"requested":  name,
			"recognized": known,
		},
	))

	return strategy
}

// Partition returns the name of the active cache partition.
func (r *Router) Partition() string {
	return r.partition
}

// Partitions exposes the partition manager for control-plane operations.
func (r *Router) Partitions() *cache.Partitions {
	return r.parts
}

// Handle resolves a request through the active strategy. It always returns
// a response; the Source field tags where it came from.
func (r *Router) Handle(ctx context.Context, req fetch.Request) *fetch.Response {
	strategy := r.Strategy()

	r.observer.OnEvent(ctx, observability.NewEvent(
		EventRequest, observability.LevelVerbose, "router.Handle",
		map[string]any{"method": req.Method, "url": req.URL, "strategy": strategy.String()},
	))

	// Non-GET requests bypass all strategies and go straight to network.
	if !req.IsGET() {
		r.observer.OnEvent(ctx, observability.NewEvent(
			EventBypass, observability.LevelVerbose, "router.Handle",
			map[string]any{"method": req.Method, "url": req.URL},
		))
		resp, err := r.fetchNetwork(ctx, req)
		if err != nil {
			return r.offline(ctx, req, err)
		}
		return resp
	}

	key := cache.RequestKey(req.Method, req.URL)
	part := r.parts.Get(r.partition)

	switch strategy {
	case NetworkFirst:
		return r.networkFirst(ctx, part, key, req)
	case StaleWhileRevalidate:
		return r.staleWhileRevalidate(ctx, part, key, req)
	case NetworkOnly:
		return r.networkOnly(ctx, req)
	case CacheOnly:
		return r.cacheOnly(ctx, part, key, req)
	default:
		return r.cacheFirst(ctx, part, key, req)
	}
}

// cacheFirst returns the cached entry when present; otherwise fetches,
// stores a successful response, and returns it.
func (r *Router) cacheFirst(ctx context.Context, part *cache.Partition, key string, req fetch.Request) *fetch.Response {
	if resp := r.lookup(ctx, part, key); resp != nil {
		return resp
	}

	resp, err := r.fetchNetwork(ctx, req)
	if err != nil {
		return r.offline(ctx, req, err)
	}
	if resp.OK() {
		r.store(ctx, part, key, resp)
	}
	return resp
}

// networkFirst prefers a fresh response and overwrites the cache entry on
// success; network failure falls back to the cached entry, then offline.
func (r *Router) networkFirst(ctx context.Context, part *cache.Partition, key string, req fetch.Request) *fetch.Response {
	resp, err := r.fetchNetwork(ctx, req)
	if err == nil {
		if resp.OK() {
			r.store(ctx, part, key, resp)
		}
		return resp
	}

	if cached := r.lookup(ctx, part, key); cached != nil {
		return cached
	}
	return r.offline(ctx, req, err)
}

// staleWhileRevalidate returns the cached entry immediately and refreshes it
// in the background. Without a cached entry the caller waits on the network.
func (r *Router) staleWhileRevalidate(ctx context.Context, part *cache.Partition, key string, req fetch.Request) *fetch.Response {
	cached := r.lookup(ctx, part, key)

	if cached != nil {
		r.revalidate(ctx, part, key, req)
		return cached
	}

	resp, err := r.fetchNetwork(ctx, req)
	if err != nil {
		return r.offline(ctx, req, err)
	}
	if resp.OK() {
		r.store(ctx, part, key, resp)
	}
	return resp
}

// networkOnly never reads or writes cache.
func (r *Router) networkOnly(ctx context.Context, req fetch.Request) *fetch.Response {
	resp, err := r.fetchNetwork(ctx, req)
	if err != nil {
		return r.offline(ctx, req, err)
	}
	return resp
}

// cacheOnly never touches the network.
func (r *Router) cacheOnly(ctx context.Context, part *cache.Partition, key string, req fetch.Request) *fetch.Response {
	if resp := r.lookup(ctx, part, key); resp != nil {
		return resp
	}
	return r.offline(ctx, req, nil)
}

// revalidate refreshes the cache entry in the background. Concurrent
// revalidations for the same key collapse into one fetch; a failed fetch
// leaves the old entry in place. The write may complete after the response
// was already delivered, so callers must not assume it is visible to them.
func (r *Router) revalidate(ctx context.Context, part *cache.Partition, key string, req fetch.Request) {
	bg := context.WithoutCancel(ctx)

	go func() {
		r.revalidations.Do(key, func() (any, error) {
			resp, err := r.fetcher.Do(bg, req)
			if err != nil {
				r.observer.OnEvent(bg, observability.NewEvent(
					EventFetchFail, observability.LevelWarning, "router.revalidate",
					map[string]any{"url": req.URL, "error": err.Error()},
				))
				return nil, nil
			}
			if resp.OK() {
				r.store(bg, part, key, resp)
			}
			r.observer.OnEvent(bg, observability.NewEvent(
				EventRevalidate, observability.LevelVerbose, "router.revalidate",
				map[string]any{"url": req.URL, "status": resp.Status},
			))
			return nil, nil
		})
	}()
}

// lookup reads and decodes the cached response for key, or nil on a miss.
// Undecodable entries count as misses.
func (r *Router) lookup(ctx context.Context, part *cache.Partition, key string) *fetch.Response {
	value, ok := part.Get(key)
	if !ok {
		r.observer.OnEvent(ctx, observability.NewEvent(
			EventCacheMiss, observability.LevelVerbose, "router.lookup",
			map[string]any{"key": key, "partition": part.Name()},
		))
		return nil
	}

	resp, err := decodeResponse(value)
	if err != nil {
		r.observer.OnEvent(ctx, observability.NewEvent(
			EventCacheMiss, observability.LevelWarning, "router.lookup",
			map[string]any{"key": key, "partition": part.Name(), "error": err.Error()},
		))
		return nil
	}

	r.observer.OnEvent(ctx, observability.NewEvent(
		EventCacheHit, observability.LevelVerbose, "router.lookup",
		map[string]any{"key": key, "partition": part.Name()},
	))
	return resp
}

// store writes a response into the partition. Failures (encode or quota)
// are reported to the observer and swallowed so they never block the
// primary response.
func (r *Router) store(ctx context.Context, part *cache.Partition, key string, resp *fetch.Response) {
	value, err := encodeResponse(resp)
	if err == nil {
		err = part.Set(ctx, key, value)
	}
	if err != nil {
		r.observer.OnEvent(ctx, observability.NewEvent(
			EventCacheWriteFail, observability.LevelWarning, "router.store",
			map[string]any{"key": key, "partition": part.Name(), "error": err.Error()},
		))
	}
}

func (r *Router) fetchNetwork(ctx context.Context, req fetch.Request) (*fetch.Response, error) {
	resp, err := r.fetcher.Do(ctx, req)
	if err != nil {
		r.observer.OnEvent(ctx, observability.NewEvent(
			EventFetchFail, observability.LevelWarning, "router.fetch",
			map[string]any{"method": req.Method, "url": req.URL, "error": err.Error()},
		))
		return nil, err
	}

	r.observer.OnEvent(ctx, observability.NewEvent(
		EventFetch, observability.LevelVerbose, "router.fetch",
		map[string]any{"method": req.Method, "url": req.URL, "status": resp.Status},
	))
	return resp, nil
}

// offline returns the canned fallback response.
func (r *Router) offline(ctx context.Context, req fetch.Request, cause error) *fetch.Response {
	data := map[string]any{"method": req.Method, "url": req.URL}
	if cause != nil {
		data["error"] = cause.Error()
	}
	r.observer.OnEvent(ctx, observability.NewEvent(
		EventFallback, observability.LevelInfo, "router.offline", data,
	))
	return r.fallback.Response()
}
