package emotion

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"

	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/observability"
)

// SummaryCache keeps recently computed dashboard summaries per device.
// A nil *SummaryCache is valid and caches nothing.
//
// Every Invalidate bumps the device's generation. Set only stores a summary whose
// generation is still current, so a summary read before a write cannot outlive it.
type SummaryCache struct {
	cache      *freecache.Cache
	ttlSeconds int

	mu   sync.Mutex
	gens map[string]uint64
}

// NewSummaryCache returns nil when ttl is not positive.
// freecache expires entries with second granularity, so ttl is rounded up.
func NewSummaryCache(sizeMB int, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		return nil
	}
	if sizeMB <= 0 {
		sizeMB = 1
	}
	return &SummaryCache{
		cache:      freecache.NewCache(sizeMB * 1024 * 1024),
		ttlSeconds: int(math.Ceil(ttl.Seconds())),
		gens:       make(map[string]uint64),
	}
}

func (c *SummaryCache) Get(deviceID string) (models.DashboardSummary, bool) {
	var summary models.DashboardSummary
	if c == nil {
		return summary, false
	}
	data, err := c.cache.Get([]byte(deviceID))
	if err != nil {
		observability.SummaryCacheLookups.WithLabelValues("miss").Inc()
		return summary, false
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		slog.Warn("decode cached summary", "device_id", deviceID, "error", err)
		c.cache.Del([]byte(deviceID))
		return summary, false
	}
	observability.SummaryCacheLookups.WithLabelValues("hit").Inc()
	return summary, true
}

// Generation returns the device's invalidation count. Take it before reading the records
// that a later Set will cache.
func (c *SummaryCache) Generation(deviceID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[deviceID]
}

// Set caches summary unless the device was invalidated after gen was taken.
func (c *SummaryCache) Set(summary models.DashboardSummary, gen uint64) {
	if c == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		slog.Warn("encode summary for cache", "device_id", summary.DeviceID, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[summary.DeviceID] != gen {
		slog.Debug("skip caching stale summary", "device_id", summary.DeviceID)
		return
	}
	if err := c.cache.Set([]byte(summary.DeviceID), data, c.ttlSeconds); err != nil {
		slog.Debug("cache summary", "device_id", summary.DeviceID, "error", err)
	}
}

// Invalidate drops the device's cached summary.
func (c *SummaryCache) Invalidate(deviceID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[deviceID]++
	c.cache.Del([]byte(deviceID))
}
