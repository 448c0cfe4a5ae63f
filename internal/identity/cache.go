package identity

import (
	"context"
	"sync"
	"time"
)

// CacheTTL is how long a cached directory lookup remains valid.
const CacheTTL = 5 * time.Minute

type cacheEntry struct {
	info      UserInfo
	timestamp time.Time
}

func (e *cacheEntry) valid() bool {
	if e == nil {
		return false
	}
	return time.Since(e.timestamp) < CacheTTL
}

// CachedDirectory wraps a Directory with a read-through TTL cache. Handle
// and display-name lookups happen on every report listing and history view,
// so repeated lookups for the same user are served from memory.
type CachedDirectory struct {
	mu      sync.RWMutex
	dir     Directory
	entries map[string]*cacheEntry
}

// NewCachedDirectory creates a caching wrapper around dir.
func NewCachedDirectory(dir Directory) *CachedDirectory {
	return &CachedDirectory{
		dir:     dir,
		entries: make(map[string]*cacheEntry),
	}
}

// Lookup returns the cached user info when fresh, otherwise falls through
// to the underlying directory and caches the result. Lookup failures are
// not cached.
func (c *CachedDirectory) Lookup(ctx context.Context, userID string) (UserInfo, error) {
	c.mu.RLock()
	entry := c.entries[userID]
	c.mu.RUnlock()

	if entry.valid() {
		return entry.info, nil
	}

	info, err := c.dir.Lookup(ctx, userID)
	if err != nil {
		return UserInfo{}, err
	}

	c.mu.Lock()
	c.entries[userID] = &cacheEntry{info: info, timestamp: time.Now()}
	c.mu.Unlock()

	return info, nil
}

// Invalidate removes a user's cached entry, forcing the next lookup to hit
// the underlying directory.
func (c *CachedDirectory) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Cleanup removes expired entries (call periodically).
func (c *CachedDirectory) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for userID, entry := range c.entries {
		if now.Sub(entry.timestamp) > CacheTTL*2 {
			delete(c.entries, userID)
		}
	}
}

// StartCleanupRoutine runs Cleanup on the given interval until the returned
// stop function is called.
func (c *CachedDirectory) StartCleanupRoutine(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
