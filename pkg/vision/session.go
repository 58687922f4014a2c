package vision

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/jmylchreest/ptsites/internal/llm"
)

// Default chat session limits.
const (
	DefaultSessionTTL      = time.Hour
	DefaultSessionCapacity = 100
)

// SessionCache holds chat histories keyed by session id. Entries expire ttl
// after they were last written; when capacity is exceeded the least recently
// used session is evicted.
type SessionCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	cache *lru.Cache
}

type session struct {
	messages []llm.Message
	expires  time.Time
}

// NewSessionCache creates a cache. A nil clock uses time.Now.
func NewSessionCache(ttl time.Duration, capacity int, now func() time.Time) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &SessionCache{
		ttl:   ttl,
		now:   now,
		cache: lru.New(capacity),
	}
}

// Get returns a copy of the session's messages.
func (c *SessionCache) Get(id string) ([]llm.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(session)
	if !c.now().Before(s.expires) {
		c.cache.Remove(id)
		return nil, false
	}
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out, true
}

// Set stores messages under id and restarts its TTL.
func (c *SessionCache) Set(id string, messages []llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]llm.Message, len(messages))
	copy(stored, messages)
	c.cache.Add(id, session{messages: stored, expires: c.now().Add(c.ttl)})
}

// Delete removes a session.
func (c *SessionCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(id)
}

// Len returns the number of stored sessions, including expired ones not yet
// observed.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
