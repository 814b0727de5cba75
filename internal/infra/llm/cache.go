package llm

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// cacheEntry is the value stored behind each list element.
type cacheEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// CompletionCache is a fixed-size, TTL-bounded, least-recently-used cache
// for Complete() results. Ancillary completions (title synthesis and
// similar short deterministic-ish prompts) are the intended callers; it is
// never consulted for Stream(), which always reflects live conversation
// state.
type CompletionCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	index    map[string]*list.Element
}

// NewCompletionCache builds a cache holding at most capacity entries, each
// valid for ttl before it is treated as a miss.
func NewCompletionCache(capacity int, ttl time.Duration) *CompletionCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &CompletionCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Get returns the cached completion for the given key and whether it was
// found and still fresh. A stale entry is evicted on lookup.
func (c *CompletionCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return "", false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return "", false
	}
	c.ll.MoveToFront(elem)
	return entry.value, true
}

// Put stores value under key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *CompletionCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.ll.MoveToFront(elem)
		return
	}

	entry := &cacheEntry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	elem := c.ll.PushFront(entry)
	c.index[key] = elem

	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *CompletionCache) evictOldest() {
	oldest := c.ll.Back()
	if oldest != nil {
		c.removeElement(oldest)
	}
}

func (c *CompletionCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.ll.Remove(elem)
	delete(c.index, entry.key)
}

// Len reports the current number of entries, including any not yet swept
// for staleness.
func (c *CompletionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// CachingClient wraps a Client and memoises Complete() calls behind a
// CompletionCache. Stream() is passed through unmodified.
type CachingClient struct {
	Client
	cache *CompletionCache
}

// NewCachingClient wraps inner with a completion cache of the given
// capacity and TTL.
func NewCachingClient(inner Client, capacity int, ttl time.Duration) *CachingClient {
	return &CachingClient{Client: inner, cache: NewCompletionCache(capacity, ttl)}
}

func (c *CachingClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	key := completionCacheKey(messages, opts)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	result, err := c.Client.Complete(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	c.cache.Put(key, result)
	return result, nil
}

func completionCacheKey(messages []Message, opts Options) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "model=%s|max_tokens=%d|temperature=%.4f|", opts.Model, opts.MaxTokens, opts.Temperature)
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s:%s;", m.Role, m.Content)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
