// Package cache memoizes English answers keyed by the normalised question.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	DefaultMaxSize = 50
	DefaultTTL     = 30 * time.Minute
)

type entry struct {
	response string
	storedAt time.Time
}

// ResponseCache is a size-bounded map with lazy TTL expiry. Lookups use
// Peek, so eviction order is insertion order rather than recency of use.
type ResponseCache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, entry]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*ResponseCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

func NewResponseCache(maxSize int, ttl time.Duration, opts ...Option) *ResponseCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// simplelru only fails on a non-positive size, ruled out above.
	lru, _ := simplelru.NewLRU[string, entry](maxSize, nil)
	c := &ResponseCache{lru: lru, maxSize: maxSize, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key folds case and trims surrounding whitespace.
func Key(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Get returns the stored answer while it is younger than the TTL. An
// expired entry is removed as a side effect.
func (c *ResponseCache) Get(query string) (string, bool) {
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return "", false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.lru.Remove(key)
		return "", false
	}
	return e.response, true
}

// Put stores an answer. When the cache is full the oldest inserted entry is
// dropped first. Re-putting an existing key moves it to the back.
func (c *ResponseCache) Put(query, response string) {
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	if c.lru.Len() >= c.maxSize {
		c.lru.RemoveOldest()
	}
	c.lru.Add(key, entry{response: response, storedAt: c.now()})
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *ResponseCache) MaxSize() int { return c.maxSize }

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
