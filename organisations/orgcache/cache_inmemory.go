package orgcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryCache is a thread-safe in-memory implementation of Cache.
type InMemoryCache struct {
	mu      sync.RWMutex
	orgs    map[string]map[string]entry
	nowTime func() time.Time
}

var _ Cache = (*InMemoryCache)(nil)

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		orgs:    make(map[string]map[string]entry),
		nowTime: time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, orgID, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, ok := c.orgs[orgID]
	if !ok {
		return nil, false, nil
	}
	e, ok := keys[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && e.expiresAt.Before(c.nowTime()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *InMemoryCache) Set(_ context.Context, orgID, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.orgs[orgID]
	if !ok {
		keys = make(map[string]entry)
		c.orgs[orgID] = keys
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.nowTime().Add(ttl)
	}
	keys[key] = entry{value: value, expiresAt: expiresAt}
	return nil
}

func (c *InMemoryCache) PurgeOrganisation(_ context.Context, orgID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.orgs, orgID)
	return nil
}
