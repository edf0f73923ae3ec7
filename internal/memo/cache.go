package memo

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

// ThresholdCounter counts the observations of a series above a threshold.
type ThresholdCounter interface {
	CountAbove(s domain.TemperatureSeries, threshold float64) int
}

// Direct counts without caching.
type Direct struct{}

func (Direct) CountAbove(s domain.TemperatureSeries, threshold float64) int {
	return domain.CountAboveThreshold(s, threshold)
}

// CachedCounter wraps a ThresholdCounter with an in-memory LRU cache keyed
// by series fingerprint and threshold. Series are immutable, so entries never
// go stale; they are only evicted.
type CachedCounter struct {
	inner  ThresholdCounter
	cache  *lruCache[string, int]
	lookup *prometheus.CounterVec // labels: result={hit,miss}; may be nil
}

// NewCachedCounter creates a cache decorator around a counter. lookups may
// be nil when metrics are not wanted.
func NewCachedCounter(inner ThresholdCounter, maxEntries int, lookups *prometheus.CounterVec) *CachedCounter {
	return &CachedCounter{
		inner:  inner,
		cache:  newLRUCache[string, int](maxEntries),
		lookup: lookups,
	}
}

func (c *CachedCounter) CountAbove(s domain.TemperatureSeries, threshold float64) int {
	key := s.Fingerprint() + "|" + strconv.FormatFloat(threshold, 'g', -1, 64)
	if n, ok := c.cache.get(key); ok {
		c.observe("hit")
		return n
	}
	c.observe("miss")
	n := c.inner.CountAbove(s, threshold)
	c.cache.put(key, n)
	return n
}

// Len returns the number of cached entries.
func (c *CachedCounter) Len() int { return c.cache.len() }

func (c *CachedCounter) observe(result string) {
	if c.lookup != nil {
		c.lookup.WithLabelValues(result).Inc()
	}
}
