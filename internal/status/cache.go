package status

import (
	"maps"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Cache maps files to their resolved status. It is not capacity bounded:
// entries only leave through eviction or Dispose.
type Cache struct {
	mu       sync.RWMutex
	entries  map[FileID]Status
	disposed bool

	seq atomic.Uint64
}

func NewCache() *Cache {
	return &Cache{entries: make(map[FileID]Status)}
}

// Seq returns the next log correlation number.
func (c *Cache) Seq() uint64 {
	return c.seq.Add(1)
}

func (c *Cache) Get(file FileID) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[file]
	return s, ok
}

// Put overwrites any previous entry. It is ignored after Dispose.
func (c *Cache) Put(file FileID, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.entries[file] = s
}

// Evict reports whether an entry was removed.
func (c *Cache) Evict(file FileID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[file]; !ok {
		return false
	}
	delete(c.entries, file)
	return true
}

// EvictAll reports whether any of files was removed.
func (c *Cache) EvictAll(files []FileID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := false
	for _, f := range files {
		if _, ok := c.entries[f]; ok {
			delete(c.entries, f)
			evicted = true
		}
	}
	return evicted
}

// EvictUnder removes root itself and every entry below it.
func (c *Cache) EvictUnder(root FileID) bool {
	prefix := string(root)
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := false
	for f := range c.entries {
		if f == root || strings.HasPrefix(string(f), prefix) {
			delete(c.entries, f)
			evicted = true
		}
	}
	return evicted
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of all entries.
func (c *Cache) Snapshot() map[FileID]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.entries)
}

// Dispose drops every entry. The cache stays usable as an always-missing cache.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[FileID]Status)
	c.disposed = true
}
