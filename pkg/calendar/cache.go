package calendar

import (
	"context"
	"sync"
	"time"
)

type windowKey struct {
	start, end int64
}

// Cache remembers the last snapshot per window so repeated briefings within
// MaxAge do not hit the provider again.
type Cache struct {
	Provider Provider
	Timeout  time.Duration
	MaxAge   time.Duration
	Now      func() time.Time

	mu    sync.Mutex
	snaps map[windowKey]Snapshot
}

// NewCache wraps p.
func NewCache(p Provider, timeout, maxAge time.Duration) *Cache {
	return &Cache{
		Provider: p,
		Timeout:  timeout,
		MaxAge:   maxAge,
		Now:      time.Now,
		snaps:    make(map[windowKey]Snapshot),
	}
}

// Snapshot returns a fresh snapshot for [start, end), from cache when the
// cached copy is younger than MaxAge. A failed refresh over an expired copy
// yields an unavailable snapshot marked Stale.
func (c *Cache) Snapshot(ctx context.Context, start, end time.Time) Snapshot {
	key := windowKey{start.UnixNano(), end.UnixNano()}
	now := c.Now()

	c.mu.Lock()
	cached, ok := c.snaps[key]
	c.mu.Unlock()
	if ok && now.Sub(cached.FetchedAt) < c.MaxAge {
		return cached
	}

	snap := Fetch(ctx, c.Provider, start, end, c.Timeout)
	snap.FetchedAt = now
	if !snap.Available {
		snap.Stale = ok
		return snap
	}

	c.mu.Lock()
	c.snaps[key] = snap
	c.evict(now)
	c.mu.Unlock()
	return snap
}

// Peek returns the cached snapshot covering [start, end) without calling
// the provider. Only copies younger than MaxAge are returned.
func (c *Cache) Peek(start, end time.Time) (Snapshot, bool) {
	now := c.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.snaps {
		if !s.Start.After(start) && !s.End.Before(end) && now.Sub(s.FetchedAt) < c.MaxAge {
			return s, true
		}
	}
	return Snapshot{}, false
}

// evict drops copies too old to be served. Must be called with mu held.
func (c *Cache) evict(now time.Time) {
	for k, s := range c.snaps {
		if now.Sub(s.FetchedAt) >= c.MaxAge {
			delete(c.snaps, k)
		}
	}
}
