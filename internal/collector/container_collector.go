package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docker-core-monitor/internal/docker/metric"
	"docker-core-monitor/internal/model"
	"docker-core-monitor/internal/store"
)

// ContainerCollector owns the record map across update cycles and performs
// the full/partial merge. A full cycle rebuilds the map from a complete
// enumeration; a partial cycle copies the previous map and overwrites only
// the containers observed in the running-only pass, so stopped or removed
// containers are carried forward unchanged until the next full cycle.
type ContainerCollector struct {
	reader       *metric.ContainerMetricsReader
	names        *store.NameStore
	logger       *slog.Logger
	fullInterval time.Duration

	mu       sync.Mutex
	records  map[string]model.ContainerMetrics
	host     model.HostInfo
	lastFull time.Time
}

func NewContainerCollector(reader *metric.ContainerMetricsReader, names *store.NameStore, logger *slog.Logger, fullInterval time.Duration) *ContainerCollector {
	if fullInterval <= 0 {
		fullInterval = 30 * time.Second
	}
	return &ContainerCollector{
		reader:       reader,
		names:        names,
		logger:       logger,
		fullInterval: fullInterval,
		records:      map[string]model.ContainerMetrics{},
	}
}

// Refresh runs one update cycle and returns the freshly assembled
// Snapshot. When collection fails the previous record set is left
// untouched and the error is returned; readers keep the prior Snapshot.
func (c *ContainerCollector) Refresh(ctx context.Context) (*model.Snapshot, error) {
	now := time.Now()

	c.mu.Lock()
	full := now.Sub(c.lastFull) > c.fullInterval
	if full {
		c.lastFull = now
	}
	c.mu.Unlock()

	mode := "partial"
	if full {
		mode = "full"
		c.logger.Debug("performing full container update")
	}

	records, host, err := c.reader.Collect(ctx, full)
	if err != nil {
		updateFailures.Inc()
		return nil, err
	}
	updateCycles.WithLabelValues(mode).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	var merged map[string]model.ContainerMetrics
	if full {
		merged = make(map[string]model.ContainerMetrics, len(records))
	} else {
		merged = make(map[string]model.ContainerMetrics, len(c.records)+len(records))
		for id, rec := range c.records {
			merged[id] = rec
		}
	}
	for _, rec := range records {
		// A failed fetch with no cached fallback never enters the map.
		if rec.State == model.StateError {
			continue
		}
		merged[rec.ID] = rec
	}
	c.records = merged
	c.host = host
	containersTracked.Set(float64(len(merged)))

	return c.snapshotLocked(now), nil
}

// snapshotLocked builds a self-contained Snapshot: a fresh container map
// with name overrides applied, keyed by the runtime name so a label
// survives container recreation.
func (c *ContainerCollector) snapshotLocked(now time.Time) *model.Snapshot {
	overrides := c.names.Overrides()
	containers := make(map[string]model.ContainerMetrics, len(c.records))
	for id, rec := range c.records {
		if label, ok := overrides.Containers[rec.RuntimeName]; ok {
			rec.Name = label
		}
		containers[id] = rec
	}
	return &model.Snapshot{
		Containers:    containers,
		Host:          c.host,
		Overrides:     overrides,
		TimestampUnix: now.Unix(),
	}
}
