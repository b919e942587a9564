package application

import (
	"sync"
	"time"
)

// Session-derived query keys the event router invalidates.
const (
	QuerySession     = "session"
	QueryCurrentUser = "current-user"
	QueryRole        = "role"
	QueryClientID    = "client-id"
	QueryProjects    = "projects"
)

// queryTTL bounds how stale a memoized entry may get when an invalidating
// event is dropped or never arrives.
const queryTTL = 5 * time.Minute

type queryEntry struct {
	value    any
	storedAt time.Time
}

// QueryCache memoizes session-derived lookups between auth events. The event
// router is the invalidation authority; the TTL is only a staleness backstop.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]queryEntry
	now     func() time.Time
}

func NewQueryCache() *QueryCache {
	return &QueryCache{entries: map[string]queryEntry{}, now: time.Now}
}

func (q *QueryCache) Get(key string) (any, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[key]
	if !ok || q.now().Sub(e.storedAt) > queryTTL {
		return nil, false
	}
	return e.value, true
}

func (q *QueryCache) Set(key string, value any) {
	q.mu.Lock()
	q.entries[key] = queryEntry{value: value, storedAt: q.now()}
	q.mu.Unlock()
}

func (q *QueryCache) Invalidate(keys ...string) {
	q.mu.Lock()
	for _, k := range keys {
		delete(q.entries, k)
	}
	q.mu.Unlock()
}

func (q *QueryCache) InvalidateAll() {
	q.mu.Lock()
	q.entries = map[string]queryEntry{}
	q.mu.Unlock()
}
