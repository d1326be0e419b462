package router

import "github.com/offlinekit/edgecache/observability"

// Router event types emitted while handling requests.
const (
	EventRequest        observability.EventType = "router.request"
	EventBypass         observability.EventType = "router.bypass"
	EventCacheHit       observability.EventType = "router.cache.hit"
	EventCacheMiss      observability.EventType = "router.cache.miss"
	EventCacheWriteFail observability.EventType = "router.cache.write_fail"
	EventFetch          observability.EventType = "router.fetch"
	EventFetchFail      observability.EventType = "router.fetch.fail"
	EventRevalidate     observability.EventType = "router.revalidate"
	EventFallback       observability.EventType = "router.fallback"
	EventStrategyChange observability.EventType = "router.strategy.change"
)
