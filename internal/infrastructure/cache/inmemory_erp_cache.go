package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/erp/gateway/internal/domain/erp"
	"github.com/google/uuid"
)

// cachedPayload is a payload with its expiry
type cachedPayload struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryERPCache implements erp.Cache in process memory.
// Suitable for single-instance deployments and tests.
type InMemoryERPCache struct {
	mu        sync.RWMutex
	entries   map[string]cachedPayload
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryERPCache creates the cache and starts a goroutine that drops
// expired entries every interval
func NewInMemoryERPCache(interval time.Duration) *InMemoryERPCache {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c := &InMemoryERPCache{
		entries:  make(map[string]cachedPayload),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop(interval)

	return c
}

func (c *InMemoryERPCache) Get(_ context.Context, tenantID uuid.UUID, domain erp.Domain, params erp.Params) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[erpKey(tenantID, domain, params)]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *InMemoryERPCache) Set(_ context.Context, tenantID uuid.UUID, domain erp.Domain, params erp.Params, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[erpKey(tenantID, domain, params)] = cachedPayload{
		value:     value,
		expiresAt: c.now().Add(domain.CacheTTL()),
	}
}

func (c *InMemoryERPCache) Invalidate(_ context.Context, tenantID uuid.UUID, domain *erp.Domain) (int, error) {
	pattern := erpPattern(tenantID, domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, e := range c.entries {
		// key segments never contain '/', so path.Match globs like Redis MATCH
		if ok, _ := path.Match(pattern, key); !ok {
			continue
		}
		delete(c.entries, key)
		if now.Before(e.expiresAt) {
			removed++
		}
	}
	return removed, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryERPCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryERPCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryERPCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of stored entries, expired ones included until cleanup
func (c *InMemoryERPCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ erp.Cache = (*InMemoryERPCache)(nil)
