package metrics

import (
	"time"

	"asset-library/internal/logging"
)

// StatsProvider supplies library statistics for the collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds aggregate library statistics.
type Stats struct {
	TotalAssets  int
	BySystemTag  map[string]int
	LastScanTime time.Time
}

// Collector periodically refreshes library gauges from a StatsProvider.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a collector polling the provider at the given interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			logging.Debug("Metrics collector stopped")
			return
		}
	}
}

func (c *Collector) collect() {
	stats := c.provider.GetStats()

	LibraryAssetsTotal.Set(float64(stats.TotalAssets))
	for tag, count := range stats.BySystemTag {
		LibraryAssetsByType.WithLabelValues(tag).Set(float64(count))
	}
	if !stats.LastScanTime.IsZero() {
		LibraryLastScanTimestamp.Set(float64(stats.LastScanTime.Unix()))
	}
}
