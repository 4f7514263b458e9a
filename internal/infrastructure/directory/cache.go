package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	domain "workify/services/conversation-api/internal/domain/conversation"
)

// CachedResolver keeps resolved identities in an LRU with a TTL. Misses are not cached.
type CachedResolver struct {
	next  domain.IdentityResolver
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

type cacheEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

// NewCachedResolver wraps next with an LRU of maxSize entries.
func NewCachedResolver(next domain.IdentityResolver, maxSize int, ttl time.Duration) (*CachedResolver, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &CachedResolver{
		next:  next,
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

var _ domain.IdentityResolver = (*CachedResolver)(nil)

func (c *CachedResolver) ResolveIdentity(ctx context.Context, senderType domain.SenderType, email string) (domain.Identity, error) {
	key := string(senderType) + ":" + strings.ToLower(strings.TrimSpace(email))
	if identity, ok := c.get(key); ok {
		return identity, nil
	}

	identity, err := c.next.ResolveIdentity(ctx, senderType, email)
	if err != nil {
		return domain.Identity{}, err
	}

	c.mu.Lock()
	c.cache.Add(key, cacheEntry{identity: identity, expiresAt: c.now().Add(c.ttl)})
	c.mu.Unlock()
	return identity, nil
}

func (c *CachedResolver) get(key string) (domain.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, found := c.cache.Get(key)
	if !found {
		return domain.Identity{}, false
	}
	entry := val.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return domain.Identity{}, false
	}
	return entry.identity, true
}
