package router_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/offlinekit/edgecache/cache"
	"github.com/offlinekit/edgecache/fetch"
	"github.com/offlinekit/edgecache/observability"
	"github.com/offlinekit/edgecache/router"
)

// fakeFetcher is a scripted Fetcher. When block is non-nil, Do waits on it
// before responding, which lets tests prove a code path never waited on the
// network.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	body  string
	stat  int
	err   error
	block chan struct{}
}

func (f *fakeFetcher) Do(ctx context.Context, req fetch.Request) (*fetch.Response, error) {
	f.mu.Lock()
	f.calls++
	body, stat, err, block := f.body, f.stat, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if stat == 0 {
		stat = http.StatusOK
	}
	return &fetch.Response{
		Status: stat,
		Header: map[string]string{"Content-Type": "text/plain"},
		Body:   []byte(body),
		Source: fetch.SourceNetwork,
	}, nil
}

func (f *fakeFetcher) set(body string, stat int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.stat, f.err = body, stat, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRouter(strategy string, fetcher fetch.Fetcher) (*router.Router, *cache.Partitions) {
	parts := cache.NewPartitions(cache.NewMemStore())
	cfg := router.DefaultConfig()
	cfg.Strategy = strategy

	r := router.New(&cfg,
		router.WithFetcher(fetcher),
		router.WithPartitions(parts),
		router.WithObserver(observability.NoOpObserver{}),
	)
	return r, parts
}

func getReq(url string) fetch.Request {
	return fetch.Request{Method: http.MethodGet, URL: url}
}

// waitForBody polls the cache through a cache-only handle until the body
// matches or the deadline passes.
func waitForBody(t *testing.T, r *router.Router, req fetch.Request, want string) {
	t.Helper()
	r.SetStrategy(context.Background(), router.CacheOnly.String())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp := r.Handle(context.Background(), req)
		if resp.Source == fetch.SourceCache && string(resp.Body) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("cache never converged to %q", want)
}

func TestCacheFirst_MissFetchesAndStores(t *testing.T) {
	fetcher := &fakeFetcher{body: "X"}
	r, _ := newTestRouter(router.CacheFirst.String(), fetcher)
	req := getReq("https://example.com/a")

	resp := r.Handle(context.Background(), req)
	if string(resp.Body) != "X" {
		t.Fatalf("first Handle() body = %q, want %q", resp.Body, "X")
	}
	if resp.Source != fetch.SourceNetwork {
		t.Errorf("first Handle() source = %q, want network", resp.Source)
	}

	// Second call is served from cache: no further network call, identical body.
	resp2 := r.Handle(context.Background(), req)
	if string(resp2.Body) != "X" {
		t.Errorf("second Handle() body = %q, want %q", resp2.Body, "X")
	}
	if resp2.Source != fetch.SourceCache {
		t.Errorf("second Handle() source = %q, want cache", resp2.Source)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("network calls = %d, want 1", fetcher.callCount())
	}
}

func TestCacheFirst_Idempotent(t *testing.T) {
	fetcher := &fakeFetcher{body: "stable"}
	r, _ := newTestRouter(router.CacheFirst.String(), fetcher)
	req := getReq("https://example.com/a")

	r.Handle(context.Background(), req)
	first := r.Handle(context.Background(), req)
	second := r.Handle(context.Background(), req)

	if string(first.Body) != string(second.Body) {
		t.Errorf("repeated Handle() bodies differ: %q vs %q", first.Body, second.Body)
	}
	if first.Status != second.Status {
		t.Errorf("repeated Handle() statuses differ: %d vs %d", first.Status, second.Status)
	}
}

func TestCacheFirst_NetworkFailureYieldsFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	r, _ := newTestRouter(router.CacheFirst.String(), fetcher)

	resp := r.Handle(context.Background(), getReq("https://example.com/a"))
	if resp == nil {
		t.Fatal("Handle() = nil, want fallback response")
	}
	if resp.Source != fetch.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
	if resp.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.Status, http.StatusServiceUnavailable)
	}
}

func TestCacheFirst_NonOKNotCached(t *testing.T) {
	fetcher := &fakeFetcher{body: "missing", stat: http.StatusNotFound}
	r, _ := newTestRouter(router.CacheFirst.String(), fetcher)
	req := getReq("https://example.com/gone")

	resp := r.Handle(context.Background(), req)
	if resp.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Status)
	}

	// Not cached: the next call hits the network again.
	r.Handle(context.Background(), req)
	if fetcher.callCount() != 2 {
		t.Errorf("network calls = %d, want 2 (404 must not be cached)", fetcher.callCount())
	}
}

func TestNetworkFirst_OverwritesCache(t *testing.T) {
	fetcher := &fakeFetcher{body: "old"}
	r, _ := newTestRouter(router.NetworkFirst.String(), fetcher)
	req := getReq("https://example.com/feed")

	r.Handle(context.Background(), req)

	fetcher.set("new", 0, nil)
	resp := r.Handle(context.Background(), req)
	if string(resp.Body) != "new" {
		t.Fatalf("Handle() body = %q, want fresh %q", resp.Body, "new")
	}

	// The cache now holds the latest network body.
	fetcher.set("", 0, errors.New("network down"))
	resp = r.Handle(context.Background(), req)
	if string(resp.Body) != "new" {
		t.Errorf("cached body = %q, want %q", resp.Body, "new")
	}
	if resp.Source != fetch.SourceCache {
		t.Errorf("source = %q, want cache", resp.Source)
	}
}

func TestNetworkFirst_UnreachableFallsBackToCache(t *testing.T) {
	fetcher := &fakeFetcher{body: "Y"}
	r, _ := newTestRouter(router.NetworkFirst.String(), fetcher)
	req := getReq("https://example.com/feed")

	r.Handle(context.Background(), req) // seeds the cache with "Y"

	fetcher.set("", 0, errors.New("no route to host"))
	resp := r.Handle(context.Background(), req)
	if string(resp.Body) != "Y" {
		t.Errorf("Handle() body = %q, want cached %q", resp.Body, "Y")
	}
}

func TestNetworkFirst_UnreachableEmptyCacheYieldsFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("no route to host")}
	r, _ := newTestRouter(router.NetworkFirst.String(), fetcher)

	resp := r.Handle(context.Background(), getReq("https://example.com/feed"))
	if resp.Source != fetch.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
}

func TestStaleWhileRevalidate_ReturnsCachedWithoutWaiting(t *testing.T) {
	fetcher := &fakeFetcher{body: "v1"}
	r, _ := newTestRouter(router.StaleWhileRevalidate.String(), fetcher)
	req := getReq("https://example.com/page")

	r.Handle(context.Background(), req) // miss path seeds "v1"

	// Block the network; the cached entry must still come back immediately.
	block := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.body = "v2"
	fetcher.block = block
	fetcher.mu.Unlock()

	done := make(chan *fetch.Response, 1)
	go func() {
		done <- r.Handle(context.Background(), req)
	}()

	select {
	case resp := <-done:
		if string(resp.Body) != "v1" {
			t.Errorf("Handle() body = %q, want stale %q", resp.Body, "v1")
		}
		if resp.Source != fetch.SourceCache {
			t.Errorf("source = %q, want cache", resp.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("Handle() blocked on the network despite a cached entry")
	}

	// Once the background fetch completes, the cache holds the fresh body.
	close(block)
	waitForBody(t, r, req, "v2")
}

func TestStaleWhileRevalidate_FailedRevalidationKeepsOldEntry(t *testing.T) {
	fetcher := &fakeFetcher{body: "v1"}
	r, _ := newTestRouter(router.StaleWhileRevalidate.String(), fetcher)
	req := getReq("https://example.com/page")

	r.Handle(context.Background(), req)

	fetcher.set("", 0, errors.New("reset by peer"))
	resp := r.Handle(context.Background(), req)
	if string(resp.Body) != "v1" {
		t.Fatalf("Handle() body = %q, want %q", resp.Body, "v1")
	}

	// Give the background revalidation time to fail, then confirm the old
	// entry survived.
	time.Sleep(50 * time.Millisecond)
	waitForBody(t, r, req, "v1")
}

func TestStaleWhileRevalidate_EmptyCacheWaitsOnNetwork(t *testing.T) {
	fetcher := &fakeFetcher{body: "fresh"}
	r, _ := newTestRouter(router.StaleWhileRevalidate.String(), fetcher)

	resp := r.Handle(context.Background(), getReq("https://example.com/page"))
	if string(resp.Body) != "fresh" {
		t.Errorf("Handle() body = %q, want %q", resp.Body, "fresh")
	}
	if resp.Source != fetch.SourceNetwork {
		t.Errorf("source = %q, want network", resp.Source)
	}
}

func TestNetworkOnly_NeverWritesCache(t *testing.T) {
	store := cache.NewMemStore()
	parts := cache.NewPartitions(store)
	fetcher := &fakeFetcher{body: "Z"}
	cfg := router.DefaultConfig()
	cfg.Strategy = router.NetworkOnly.String()
	r := router.New(&cfg,
		router.WithFetcher(fetcher),
		router.WithPartitions(parts),
		router.WithObserver(observability.NoOpObserver{}),
	)
	req := getReq("https://example.com/live")

	resp := r.Handle(context.Background(), req)
	if string(resp.Body) != "Z" {
		t.Fatalf("Handle() body = %q, want %q", resp.Body, "Z")
	}

	keys, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("store has %d keys after network-only, want 0", len(keys))
	}
}

func TestNetworkOnly_FailureYieldsFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("timeout")}
	r, _ := newTestRouter(router.NetworkOnly.String(), fetcher)

	resp := r.Handle(context.Background(), getReq("https://example.com/live"))
	if resp.Source != fetch.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
}

func TestCacheOnly_NeverFetches(t *testing.T) {
	fetcher := &fakeFetcher{body: "never served"}
	r, _ := newTestRouter(router.CacheOnly.String(), fetcher)

	resp := r.Handle(context.Background(), getReq("https://example.com/a"))
	if resp.Source != fetch.SourceFallback {
		t.Errorf("source = %q, want fallback on empty cache", resp.Source)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("network calls = %d, want 0", fetcher.callCount())
	}
}

func TestNonGET_BypassesCache(t *testing.T) {
	store := cache.NewMemStore()
	parts := cache.NewPartitions(store)
	fetcher := &fakeFetcher{body: "created", stat: http.StatusCreated}
	cfg := router.DefaultConfig()
	cfg.Strategy = router.CacheFirst.String()
	r := router.New(&cfg,
		router.WithFetcher(fetcher),
		router.WithPartitions(parts),
		router.WithObserver(observability.NoOpObserver{}),
	)

	resp := r.Handle(context.Background(), fetch.Request{Method: http.MethodPost, URL: "https://example.com/submit"})
	if resp.Status != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.Status)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("network calls = %d, want 1", fetcher.callCount())
	}

	keys, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("store has %d keys after POST, want 0", len(keys))
	}
}

func TestNonGET_NetworkFailureYieldsFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("broken pipe")}
	r, _ := newTestRouter(router.CacheFirst.String(), fetcher)

	resp := r.Handle(context.Background(), fetch.Request{Method: http.MethodPost, URL: "https://example.com/submit"})
	if resp == nil {
		t.Fatal("Handle() = nil, want fallback")
	}
	if resp.Source != fetch.SourceFallback {
		t.Errorf("source = %q, want fallback", resp.Source)
	}
}

func TestSetStrategy_FailsClosedToDefault(t *testing.T) {
	fetcher := &fakeFetcher{body: "X"}
	r, _ := newTestRouter(router.NetworkOnly.String(), fetcher)

	effective := r.SetStrategy(context.Background(), "turbo-mode")
	if effective != router.DefaultStrategy {
		t.Errorf("SetStrategy(unknown) = %q, want %q", effective, router.DefaultStrategy)
	}
	if r.Strategy() != router.DefaultStrategy {
		t.Errorf("Strategy() = %q, want %q", r.Strategy(), router.DefaultStrategy)
	}
}

func TestSetStrategy_TakesEffectOnNextHandle(t *testing.T) {
	fetcher := &fakeFetcher{body: "X"}
	r, _ := newTestRouter(router.CacheFirst.String(), fetcher)
	req := getReq("https://example.com/a")

	r.Handle(context.Background(), req) // caches "X"

	r.SetStrategy(context.Background(), router.CacheOnly.String())
	resp := r.Handle(context.Background(), req)
	if resp.Source != fetch.SourceCache {
		t.Errorf("source = %q, want cache under cache-only", resp.Source)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("network calls = %d, want 1", fetcher.callCount())
	}
}

// failingStore accepts nothing: every Save fails as if the quota were
// exhausted.
type failingStore struct{}

func (failingStore) List(context.Context) ([]string, error) { return nil, nil }

func (failingStore) Load(context.Context, ...string) ([]cache.Entry, error) {
	return nil, fmt.Errorf("%w: empty", cache.ErrKeyNotFound)
}
func (failingStore) Save(context.Context, ...cache.Entry) error {
	return fmt.Errorf("%w: quota exceeded", cache.ErrSaveFailed)
}

func (failingStore) Delete(context.Context, ...string) error { return nil }

func TestHandle_CacheWriteFailureDoesNotBlockResponse(t *testing.T) {
	parts := cache.NewPartitions(failingStore{})
	fetcher := &fakeFetcher{body: "X"}
	cfg := router.DefaultConfig()
	cfg.Strategy = router.CacheFirst.String()
	r := router.New(&cfg,
		router.WithFetcher(fetcher),
		router.WithPartitions(parts),
		router.WithObserver(observability.NoOpObserver{}),
	)

	resp := r.Handle(context.Background(), getReq("https://example.com/a"))
	if string(resp.Body) != "X" {
		t.Errorf("Handle() body = %q, want %q despite failed cache write", resp.Body, "X")
	}
	if resp.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.Status)
	}
}
