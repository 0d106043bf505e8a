package directory

import (
	"context"
	"errors"
	"sync"
	"time"
)

type cacheEntry struct {
	lawyer   Lawyer
	notFound bool
	expires  time.Time
}

// Cached memoises lookups for ttl. Misses are cached for a tenth of ttl so a
// newly added lawyer shows up quickly. Directory outages are never cached.
type Cached struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(next Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{next: next, ttl: ttl, now: time.Now, entries: map[string]cacheEntry{}}
}

func (c *Cached) Lookup(ctx context.Context, lawyerID string) (Lawyer, error) {
	now := c.now()
	c.mu.Lock()
	e, ok := c.entries[lawyerID]
	c.mu.Unlock()
	if ok && now.Before(e.expires) {
		if e.notFound {
			return Lawyer{}, ErrLawyerNotFound
		}
		return e.lawyer, nil
	}

	l, err := c.next.Lookup(ctx, lawyerID)
	switch {
	case err == nil:
		c.store(lawyerID, cacheEntry{lawyer: l, expires: now.Add(c.ttl)})
	case errors.Is(err, ErrLawyerNotFound):
		c.store(lawyerID, cacheEntry{notFound: true, expires: now.Add(c.ttl / 10)})
	}
	return l, err
}

func (c *Cached) store(id string, e cacheEntry) {
	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
}
