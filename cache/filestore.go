package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stored responses get a fixed extension so List can tell cache entries
// apart from temp files and strays left in a partition directory.
const fileExt = ".resp"

// fileStore lays partitions out as directories under root, one ".resp" file
// per stored response. Keys must split into a partition name and a single
// path-safe segment; anything else would escape the layout and is rejected.
type fileStore struct {
	root string
}

// NewFileStore creates a Store backed by the filesystem. Writes go through a
// temp file and rename so a crash never leaves a half-written response
// behind.
func NewFileStore(root string) Store {
	return &fileStore{root: root}
}

// entryPath maps a store key onto the partition layout.
func (s *fileStore) entryPath(key string) (string, error) {
	partition, segment, ok := splitKey(key)
	if !ok || !pathSafe(partition) || !pathSafe(segment) {
		return "", fmt.Errorf("malformed store key: %s", key)
	}
	return filepath.Join(s.root, partition, segment+fileExt), nil
}

// pathSafe reports whether name can serve as a single path element of the
// layout. Encoded request segments are base64url so they always pass; this
// guards partition names and keys read back off disk.
func pathSafe(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func (s *fileStore) List(_ context.Context) ([]string, error) {
	partitions, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	var keys []string
	for _, p := range partitions {
		if !p.IsDir() || !pathSafe(p.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, p.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		for _, f := range files {
			name, isEntry := strings.CutSuffix(f.Name(), fileExt)
			if f.IsDir() || !isEntry || !pathSafe(name) {
				continue
			}
			keys = append(keys, p.Name()+"/"+name)
		}
	}

	return keys, nil
}

func (s *fileStore) Load(_ context.Context, keys ...string) ([]Entry, error) {
	entries := make([]Entry, 0, len(keys))

	for _, key := range keys {
		path, err := s.entryPath(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
		}
		entries = append(entries, Entry{Key: key, Value: data})
	}

	return entries, nil
}

func (s *fileStore) Save(_ context.Context, entries ...Entry) error {
	for _, e := range entries {
		path, err := s.entryPath(e.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}

		tmp, err := os.CreateTemp(dir, ".tmp-*")
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		tmpName := tmp.Name()

		if _, err := tmp.Write(e.Value); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}

		if err := os.Rename(tmpName, path); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
	}

	return nil
}

func (s *fileStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		path, err := s.entryPath(key)
		if err != nil {
			continue // nothing can be stored under a malformed key
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete failed: %s: %w", key, err)
		}

		// Drop the partition directory once its last entry is gone;
		// Remove refuses non-empty directories.
		_ = os.Remove(filepath.Dir(path))
	}

	return nil
}
