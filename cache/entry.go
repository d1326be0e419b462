package cache

import (
	"encoding/base64"
	"strings"
)

// Entry is a key-value pair in a cache store. Keys take the form
// <partition>/<encoded request key> and values are encoded responses.
type Entry struct {
	Key   string
	Value []byte
}

// RequestKey derives the cache identity of a request from its method and URL.
// Only GET requests are cacheable; the method is kept in the key so that a
// partition can never alias responses across methods.
func RequestKey(method, url string) string {
	return method + " " + url
}

// encodeKey makes a request key safe for use as a single path segment.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// decodeKey reverses encodeKey. Returns false for segments that were not
// produced by encodeKey.
func decodeKey(segment string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// splitKey separates a store key into partition name and encoded segment.
func splitKey(key string) (partition, segment string, ok bool) {
	partition, segment, ok = strings.Cut(key, "/")
	return partition, segment, ok && partition != "" && segment != ""
}
