package metrics

import (
	"context"
	"time"

	"fileindex/internal/logging"
)

// StatsProvider reports the current index contents.
type StatsProvider interface {
	IndexCounts(ctx context.Context) (Stats, error)
}

// Stats holds the current index row counts
type Stats struct {
	Files       int
	Directories int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.IndexCounts(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	IndexFilesTotal.Set(float64(stats.Files))
	IndexDirectoriesTotal.Set(float64(stats.Directories))

	logging.Debug("Metrics collected: files=%d, directories=%d", stats.Files, stats.Directories)
}
