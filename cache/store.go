// Package cache implements named, versioned response-cache partitions backed
// by pluggable key-value storage. A Partition is a concurrency-safe
// write-through view over a Store; the Partitions manager handles creation,
// version rollover, and wholesale clearing.
package cache

import "context"

// Store persists cache entries in external storage. Implementations are
// stateless — they perform I/O on each call without caching. Keys are
// /-separated paths whose first segment is the owning partition name.
type Store interface {
	// List returns all keys present in the store.
	List(ctx context.Context) ([]string, error)
	// Load retrieves the entries for the given keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
