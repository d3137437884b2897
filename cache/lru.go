package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	cachekey "github.com/always-cache/gist-cache/pkg/cache-key"
)

// LRUCache is a size-capped in-memory provider.
// When full, the least recently used key is evicted to make room.
// Eviction removes entries early, it never extends their freshness.
type LRUCache struct {
	lru *lru.Cache[cachekey.Key, Entry]
}

// NewLRUCache creates a provider holding at most size entries.
func NewLRUCache(size int) (LRUCache, error) {
	if size <= 0 {
		return LRUCache{}, fmt.Errorf("LRU cache size must be positive, got %d", size)
	}
	l, err := lru.New[cachekey.Key, Entry](size)
	if err != nil {
		return LRUCache{}, err
	}
	return LRUCache{lru: l}, nil
}

func (c LRUCache) Get(key cachekey.Key) (Entry, bool, error) {
	entry, ok := c.lru.Get(key)
	return entry, ok, nil
}

func (c LRUCache) Put(key cachekey.Key, entry Entry) error {
	c.lru.Add(key, cloneEntry(entry))
	return nil
}

func (c LRUCache) Len() int {
	return c.lru.Len()
}
