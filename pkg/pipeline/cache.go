package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCacheTTL applies when neither the call nor the tool sets one.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result    InvocationResult
	createdAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// ResultCache is a bounded, TTL-based store of invocation results keyed by
// input fingerprint. Expired entries are logically absent before they are
// physically evicted.
type ResultCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	capacity int
}

// NewResultCache creates a cache holding at most capacity entries. A
// capacity of zero or less means unbounded.
func NewResultCache(capacity int) *ResultCache {
	return &ResultCache{
		entries:  make(map[string]cacheEntry),
		capacity: capacity,
	}
}

// Fingerprint derives the deterministic cache key for a tool invocation.
// encoding/json marshals map keys in sorted order, so structurally equal
// inputs always produce the same key.
func Fingerprint(toolName string, input map[string]interface{}) (string, error) {
	serialized, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to serialize input for fingerprint: %w", err)
	}
	return toolName + ":" + string(serialized), nil
}

// Set stores a result under a key. A ttl of zero never expires. When the
// cache is at capacity the globally-oldest entry is evicted first.
func (c *ResultCache) Set(key string, result InvocationResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = cacheEntry{
		result:    result,
		createdAt: time.Now(),
		ttl:       ttl,
	}
}

// Get returns the cached result for a key if present and not expired.
// Expired entries are lazily deleted.
func (c *ResultCache) Get(key string) (InvocationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return InvocationResult{}, false
	}
	if entry.expired(time.Now()) {
		delete(c.entries, key)
		return InvocationResult{}, false
	}
	return entry.result, true
}

// Has reports whether a key is present and not expired, with the same lazy
// expiry semantics as Get.
func (c *ResultCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes a key and reports whether it existed.
func (c *ResultCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return ok
}

// Clear removes all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Size returns the number of physically stored entries, expired or not.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept expired cache entries")
	}

	return removed
}

// evictOldestLocked drops the entry with the oldest creation timestamp.
// O(capacity) scan; eviction-order optimality is not a goal here.
func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.createdAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
	}
}
