// Package dedup provides a TTL cache keyed by client request IDs so retried
// requests replay the original response instead of running a second turn.
package dedup

import (
	"sync"
	"time"

	"github.com/relay-ai/relay/pkg/types"
)

// DefaultTTL is how long an entry is replayable after it is written.
const DefaultTTL = 60 * time.Second

// Entry is a cached orchestration outcome for one request key. While the
// original request is still in flight the entry is a pending placeholder
// carrying only the session ID.
type Entry struct {
	SessionID string
	Pending   bool
	Response  *types.TurnResponse

	expiresAt time.Time
}

// Cache is an in-memory request-key cache. Expired entries are evicted
// lazily on access.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Entry

	now func() time.Time
}

// New creates a cache with the given TTL; ttl <= 0 means DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the live entry for key, if any.
func (c *Cache) Get(key string) (Entry, bool) {
	if key == "" {
		return Entry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return Entry{}, false
	}
	return entry, true
}

// PutPending records that a request with this key is in flight against the
// given session. Written before the turn starts so concurrent retries see
// the placeholder rather than starting their own turn.
func (c *Cache) PutPending(key, sessionID string) {
	if key == "" {
		return
	}
	c.put(key, Entry{SessionID: sessionID, Pending: true})
}

// PutResponse records the final response for this key, replacing any
// pending placeholder.
func (c *Cache) PutResponse(key string, response *types.TurnResponse) {
	if key == "" {
		return
	}
	c.put(key, Entry{SessionID: response.SessionID, Response: response})
}

func (c *Cache) put(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.expiresAt = c.now().Add(c.ttl)
	c.entries[key] = entry

	// Sweep expired entries while holding the lock; the map stays small.
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
