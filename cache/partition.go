package cache

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Partition is a named view over a Store holding request→response entries.
// Reads are served from an in-memory map; writes go through to the store
// immediately so a fresh entry is visible to the very next request. All
// methods are safe for concurrent use. Concurrent writes to the same key
// race and the last writer wins; entries are idempotent re-derivations of
// the same URL's content, so no coordination is layered on top.
type Partition struct {
	name    string
	store   Store
	entries map[string][]byte
	mu      sync.RWMutex
}

func newPartition(name string, store Store) *Partition {
	return &Partition{
		name:    name,
		store:   store,
		entries: make(map[string][]byte),
	}
}

// Name returns the partition name, including its version suffix.
func (p *Partition) Name() string {
	return p.name
}

// Get returns the value cached under the request key, if present. Get never
// performs I/O; entries not warmed via Set or load are treated as absent.
func (p *Partition) Get(key string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(value), true
}

// Set stores value under the request key and writes it through to the
// backing store. The in-memory entry is updated even when the store write
// fails, so the caller can serve the response it already has; the error
// reports the persistence failure.
func (p *Partition) Set(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	p.entries[key] = slices.Clone(value)
	p.mu.Unlock()

	entry := Entry{Key: p.storeKey(key), Value: value}
	if err := p.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("partition %s: %w", p.name, err)
	}
	return nil
}

// Delete removes the entry for the request key from memory and store.
func (p *Partition) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()

	if err := p.store.Delete(ctx, p.storeKey(key)); err != nil {
		return fmt.Errorf("partition %s: %w", p.name, err)
	}
	return nil
}

// Keys returns the request keys currently held, sorted.
func (p *Partition) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, 0, len(p.entries))
	for key := range p.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries currently held.
func (p *Partition) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

func (p *Partition) storeKey(key string) string {
	return p.name + "/" + encodeKey(key)
}

func (p *Partition) load(key string, value []byte) {
	p.mu.Lock()
	p.entries[key] = value
	p.mu.Unlock()
}

func (p *Partition) reset() {
	p.mu.Lock()
	p.entries = make(map[string][]byte)
	p.mu.Unlock()
}

// Partitions manages the named cache partitions sharing one Store.
// Partitions are created on first use and deleted wholesale on version
// rollover via Activate.
type Partitions struct {
	store Store
	parts map[string]*Partition
	mu    sync.Mutex
}

// NewPartitions creates a Partitions manager over the given store.
func NewPartitions(store Store) *Partitions {
	return &Partitions{
		store: store,
		parts: make(map[string]*Partition),
	}
}

// Get returns the named partition, creating it on first use.
func (ps *Partitions) Get(name string) *Partition {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	part, ok := ps.parts[name]
	if !ok {
		part = newPartition(name, ps.store)
		ps.parts[name] = part
	}
	return part
}

// Warm populates the in-memory entries of every partition present in the
// store. Call once at startup so earlier runs' responses are served without
// per-request store reads.
func (ps *Partitions) Warm(ctx context.Context) error {
	keys, err := ps.store.List(ctx)
	if err != nil {
		return fmt.Errorf("warm partitions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	entries, err := ps.store.Load(ctx, keys...)
	if err != nil {
		return fmt.Errorf("warm partitions: %w", err)
	}

	for _, e := range entries {
		name, segment, ok := splitKey(e.Key)
		if !ok {
			continue
		}
		key, ok := decodeKey(segment)
		if !ok {
			continue
		}
		ps.Get(name).load(key, e.Value)
	}
	return nil
}

// Activate performs version rollover: every partition whose name is not in
// keep is deleted from the store and dropped from memory. Returns the names
// that were removed, sorted.
func (ps *Partitions) Activate(ctx context.Context, keep ...string) ([]string, error) {
	known := make(map[string]bool, len(keep))
	for _, name := range keep {
		known[name] = true
	}

	keys, err := ps.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}

	var stale []string
	removed := make(map[string]bool)
	for _, key := range keys {
		name, _, ok := splitKey(key)
		if !ok || known[name] {
			continue
		}
		stale = append(stale, key)
		removed[name] = true
	}

	if len(stale) > 0 {
		if err := ps.store.Delete(ctx, stale...); err != nil {
			return nil, fmt.Errorf("activate: %w", err)
		}
	}

	ps.mu.Lock()
	for name := range ps.parts {
		if !known[name] {
			delete(ps.parts, name)
			removed[name] = true
		}
	}
	ps.mu.Unlock()

	names := make([]string, 0, len(removed))
	for name := range removed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clear wipes every partition, in memory and in the store.
func (ps *Partitions) Clear(ctx context.Context) error {
	keys, err := ps.store.List(ctx)
	if err != nil {
		return fmt.Errorf("clear partitions: %w", err)
	}
	if len(keys) > 0 {
		if err := ps.store.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("clear partitions: %w", err)
		}
	}

	ps.mu.Lock()
	for _, part := range ps.parts {
		part.reset()
	}
	ps.mu.Unlock()
	return nil
}

// Names returns the names of all partitions currently known in memory,
// sorted.
func (ps *Partitions) Names() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	names := make([]string, 0, len(ps.parts))
	for name := range ps.parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
