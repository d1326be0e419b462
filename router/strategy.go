// Package router dispatches intercepted requests to one of five caching
// strategies and guarantees a response even when both cache and network
// fail. It is the gateway's counterpart of a service worker's fetch handler.
package router

// Strategy names a policy governing whether cache or network takes
// precedence for a request.
type Strategy string

const (
	CacheFirst           Strategy = "cache-first"
	NetworkFirst         Strategy = "network-first"
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
	NetworkOnly          Strategy = "network-only"
	CacheOnly            Strategy = "cache-only"
)

// DefaultStrategy is the documented fail-closed default: unrecognized
// strategy names resolve to cache-first.
const DefaultStrategy = CacheFirst

// Valid reports whether s is one of the five known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case CacheFirst, NetworkFirst, StaleWhileRevalidate, NetworkOnly, CacheOnly:
		return true
	}
	return false
}

func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy resolves a strategy name. Unknown names fail closed to
// DefaultStrategy; the second return reports whether the name was
// recognized.
func ParseStrategy(name string) (Strategy, bool) {
	s := Strategy(name)
	if !s.Valid() {
		return DefaultStrategy, false
	}
	return s, true
}
