package metric

import (
	"sync"
	"time"

	"docker-core-monitor/internal/model"
)

// containerAttrs are the expensive inspect-derived attributes that rarely
// change. They are refreshed only on full passes or first sight and carried
// forward otherwise.
type containerAttrs struct {
	startedAt time.Time
	cpuLimit  *float64
	cpuShares *int64
	cpuCount  uint32
	known     bool
}

type cacheEntry struct {
	rec   model.ContainerMetrics
	attrs containerAttrs
}

// Cache keeps the last computed record per container together with its
// inspect attributes. Freshness windows differ for running and non-running
// containers: stopped containers change slowly and tolerate a much longer
// window.
type Cache struct {
	mu         sync.Mutex
	ttlRunning time.Duration
	ttlStopped time.Duration
	entries    map[string]cacheEntry
}

func NewCache(ttlRunning, ttlStopped time.Duration) *Cache {
	return &Cache{
		ttlRunning: ttlRunning,
		ttlStopped: ttlStopped,
		entries:    map[string]cacheEntry{},
	}
}

// Fresh returns the cached record while it is inside its freshness window.
// For a running container the uptime is advanced by the elapsed wall-clock
// time instead of being re-derived; every other field, including
// LastUpdate, is returned untouched.
func (c *Cache) Fresh(id, state string, now time.Time) (model.ContainerMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return model.ContainerMetrics{}, false
	}
	age := now.Sub(e.rec.LastUpdate)
	if age < 0 {
		age = 0
	}
	if state == model.StateRunning {
		if age < c.ttlRunning {
			rec := e.rec
			rec.UptimeSeconds += age.Seconds()
			return rec, true
		}
		return model.ContainerMetrics{}, false
	}
	if age < c.ttlStopped {
		return e.rec, true
	}
	return model.ContainerMetrics{}, false
}

// Last returns the cached record regardless of age.
func (c *Cache) Last(id string) (model.ContainerMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e.rec, ok
}

// Attrs returns the cached inspect attributes regardless of age.
func (c *Cache) Attrs(id string) (containerAttrs, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e.attrs, ok && e.attrs.known
}

func (c *Cache) Record(id string, rec model.ContainerMetrics, attrs containerAttrs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cacheEntry{rec: rec, attrs: attrs}
}
