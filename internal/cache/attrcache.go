package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Mayank-software/dropboxfs/pkg/types"
)

// Config represents attribute-cache configuration
type Config struct {
	// FreshnessWindow bounds how old an entry may be and still satisfy
	// a Lookup.
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	// CleanupThreshold is the age at which the sweep evicts an entry.
	// Independent of FreshnessWindow.
	CleanupThreshold time.Duration `yaml:"cleanup_threshold"`
	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// entry is one cached attribute record with its observation time.
type entry struct {
	meta     types.Metadata
	observed time.Time
}

// AttrCache is a path-keyed attribute cache in front of a RemoteClient.
// A single mutex serializes all map access; remote calls are made outside
// the lock, so concurrent refreshes of the same path may race and the
// later store wins. Observation timestamps per path only move forward.
type AttrCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	remote  types.RemoteClient
	config  Config

	stats types.CacheStats

	// now is replaceable for tests
	now func() time.Time

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewAttrCache creates an attribute cache. The sweep is not started;
// call StartSweep once the adapter is mounted.
func NewAttrCache(remote types.RemoteClient, config Config) *AttrCache {
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = 3 * time.Second
	}
	if config.CleanupThreshold <= 0 {
		config.CleanupThreshold = 4 * time.Second
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 10 * time.Second
	}

	return &AttrCache{
		entries: make(map[string]*entry),
		remote:  remote,
		config:  config,
		now:     time.Now,
	}
}

// Lookup returns the cached attributes for path when the entry is younger
// than the freshness window.
func (c *AttrCache) Lookup(path string) (types.Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok || c.now().Sub(e.observed) >= c.config.FreshnessWindow {
		c.stats.Misses++
		return types.Metadata{}, false
	}

	c.stats.Hits++
	return e.meta, true
}

// Refresh fetches attributes from the remote and stores the result.
// A structured not-found error from the remote propagates unchanged and
// leaves the cache untouched.
func (c *AttrCache) Refresh(ctx context.Context, path string) (types.Metadata, error) {
	meta, err := c.remote.GetMetadata(ctx, path)
	if err != nil {
		return types.Metadata{}, err
	}

	c.Store(path, *meta)
	return *meta, nil
}

// Store inserts or overwrites the entry for path with the current time.
func (c *AttrCache) Store(path string, meta types.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = &entry{meta: meta, observed: c.now()}
}

// Invalidate drops the entry for path, if present.
func (c *AttrCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Stats returns a snapshot of the cache counters.
func (c *AttrCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// StartSweep launches the background eviction loop. It stops when ctx is
// canceled or Stop is called.
func (c *AttrCache) StartSweep(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.sweepCancel != nil {
		c.mu.Unlock()
		cancel()
		return
	}
	c.sweepCancel = cancel
	done := make(chan struct{})
	c.sweepDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evicted := c.SweepOnce()
				if evicted > 0 {
					slog.Debug("attribute cache sweep", "evicted", evicted)
				}
			}
		}
	}()
}

// SweepOnce evicts every entry older than the cleanup threshold and
// returns the number removed. Eviction is unconditional: recent access
// does not rescue an old entry.
func (c *AttrCache) SweepOnce() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.config.CleanupThreshold)
	evicted := 0
	for path, e := range c.entries {
		if e.observed.Before(cutoff) {
			delete(c.entries, path)
			evicted++
		}
	}
	c.stats.Evictions += uint64(evicted)
	return evicted
}

// Stop halts the background sweep and waits for it to exit.
func (c *AttrCache) Stop() {
	c.mu.Lock()
	cancel := c.sweepCancel
	done := c.sweepDone
	c.sweepCancel = nil
	c.sweepDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
