// Copyright 2025 LazySync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache holds the authoritative in-memory map from remote path to
// directory snapshot, mirrored to a single JSON document on disk.
//
// The mirror is rewritten atomically (temp file + rename) after every
// successful update, so a crash mid-write never corrupts previously
// persisted paths. On startup the mirror pre-populates the map before any
// request is served.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"lazysync/internal/wire"
)

// Cache maps normalized remote paths to snapshots. A stored snapshot is
// always the most recently completed full response for its path; entries are
// never expired, only explicitly invalidated.
//
// Thread-safe: a whole-map RWMutex keeps lookups concurrent and replaces
// atomic. Callers must treat returned entry slices as immutable.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]wire.Entry

	file string       // mirror document; empty for memory-only caches
	lock *flock.Flock // sidecar lock so two daemons never share a mirror
}

// NewMemory returns a cache with no on-disk mirror.
func NewMemory() *Cache {
	return &Cache{entries: make(map[string][]wire.Entry)}
}

// Open loads the mirror document at file (a missing file is an empty cache)
// and locks it against other lazysync processes.
func Open(file string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	lock := flock.New(file + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache mirror: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("cache mirror %s is in use by another process", file)
	}

	c := &Cache{entries: make(map[string][]wire.Entry), file: file, lock: lock}
	if err := c.load(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return c, nil
}

// EphemeralFile returns a per-instance mirror file name under dir, for
// throwaway sessions that must not collide with the default mirror.
func EphemeralFile(dir string) string {
	return filepath.Join(dir, "cache."+uuid.NewString()+".json")
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache mirror: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return fmt.Errorf("parse cache mirror: %w", err)
	}
	return nil
}

// Lookup returns the current snapshot for path. No side effects on miss.
func (c *Cache) Lookup(path string) ([]wire.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.entries[path]
	return entries, ok
}

// Store replaces the snapshot for path and persists the mirror. The
// in-memory replace happens even when persistence fails, so the returned
// error is a mirror problem only, not a failed store.
func (c *Cache) Store(path string, entries []wire.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entries
	return c.persistLocked()
}

// Invalidate removes the snapshot for path if present. Idempotent; the next
// lookup for path is a miss.
func (c *Cache) Invalidate(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; !ok {
		return nil
	}
	delete(c.entries, path)
	return c.persistLocked()
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Paths returns the currently cached paths, in no particular order.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	return paths
}

// persistLocked rewrites the mirror document. Must be called with mu held.
func (c *Cache) persistLocked() error {
	if c.file == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache mirror: %w", err)
	}

	tmp := c.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write cache mirror: %w", err)
	}
	if err := os.Rename(tmp, c.file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cache mirror: %w", err)
	}
	return nil
}

// Close releases the mirror lock. The mirror itself is left in place for the
// next session.
func (c *Cache) Close() error {
	if c.lock != nil {
		return c.lock.Unlock()
	}
	return nil
}
