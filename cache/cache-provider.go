package cache

import (
	"sync"
	"time"

	cachekey "github.com/always-cache/gist-cache/pkg/cache-key"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves gist listing payloads together with the time they were stored.
// Freshness is decided by the caller (see IsFresh), providers never hide stale entries.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the entry for the given key, if it exists, regardless of its age.
	Get(key cachekey.Key) (Entry, bool, error)
	// Put stores the entry under the given key, replacing any previous entry.
	Put(key cachekey.Key, entry Entry) error
	// Len returns the number of stored entries.
	Len() int
}

// Entry is a stored upstream payload.
// Entries are replaced as a whole and never modified after being put.
type Entry struct {
	StoredAt time.Time
	Payload  []byte
}

// IsFresh reports whether the entry may be served without refetching.
func IsFresh(entry Entry, now time.Time, ttl time.Duration) bool {
	return now.Sub(entry.StoredAt) < ttl
}

func cloneEntry(e Entry) Entry {
	payload := make([]byte, len(e.Payload))
	copy(payload, e.Payload)
	return Entry{StoredAt: e.StoredAt, Payload: payload}
}

// MemCache is an unbounded in-memory provider.
// Entries are only ever replaced, there is no eviction.
type MemCache struct {
	mutex *sync.RWMutex
	db    map[cachekey.Key]Entry
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[cachekey.Key]Entry),
	}
}

func (m MemCache) Get(key cachekey.Key) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.db[key]
	return entry, ok, nil
}

func (m MemCache) Put(key cachekey.Key, entry Entry) error {
	entry = cloneEntry(entry)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = entry
	return nil
}

func (m MemCache) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db)
}
