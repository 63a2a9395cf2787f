package metric

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"golang.org/x/sync/errgroup"

	"docker-core-monitor/internal/docker"
	"docker-core-monitor/internal/model"
)

// ContainerMetricsReader drives stats collection for one pass: it
// enumerates containers, fans the per-container fetches out over a bounded
// worker pool batch by batch, and normalizes every sample into a
// ContainerMetrics record. Batches bound the number of in-flight calls
// against the daemon; within a batch fetches run concurrently.
type ContainerMetricsReader struct {
	conn         *docker.ConnManager
	cache        *Cache
	logger       *slog.Logger
	batchSize    int
	maxWorkers   int
	batchTimeout time.Duration
}

func NewContainerMetricsReader(conn *docker.ConnManager, cache *Cache, logger *slog.Logger, batchSize, maxWorkers int, batchTimeout time.Duration) *ContainerMetricsReader {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxWorkers <= 0 {
		maxWorkers = 20
	}
	if batchTimeout <= 0 {
		batchTimeout = 25 * time.Second
	}
	return &ContainerMetricsReader{
		conn:         conn,
		cache:        cache,
		logger:       logger,
		batchSize:    batchSize,
		maxWorkers:   maxWorkers,
		batchTimeout: batchTimeout,
	}
}

// Collect runs one collection pass and returns the records plus the host
// totals. A full pass enumerates every container and refreshes inspect
// attributes; a partial pass covers only running containers. Per-container
// failures degrade to cached or error records and never fail the pass.
func (r *ContainerMetricsReader) Collect(ctx context.Context, full bool) ([]model.ContainerMetrics, model.HostInfo, error) {
	rt, err := r.conn.Client(ctx)
	if err != nil {
		return nil, model.HostInfo{}, err
	}

	list, err := rt.ListContainers(ctx, full)
	if err != nil {
		r.conn.NoteError(err)
		return nil, model.HostInfo{}, err
	}
	r.conn.NoteSuccess()

	host, err := rt.HostInfo(ctx)
	if err != nil {
		r.conn.NoteError(err)
		r.logger.Warn("host info fetch failed", "error", err)
	}

	out := make([]model.ContainerMetrics, 0, len(list))
	for start := 0; start < len(list); start += r.batchSize {
		end := min(start+r.batchSize, len(list))
		out = append(out, r.collectBatch(ctx, rt, list[start:end], full, host.MemoryTotal)...)
	}
	return out, host, nil
}

func (r *ContainerMetricsReader) collectBatch(ctx context.Context, rt docker.Runtime, batch []docker.Container, full bool, hostMemory uint64) []model.ContainerMetrics {
	bctx, cancel := context.WithTimeout(ctx, r.batchTimeout)
	defer cancel()

	results := make([]model.ContainerMetrics, len(batch))
	g, gctx := errgroup.WithContext(bctx)
	g.SetLimit(r.maxWorkers)
	for i, c := range batch {
		i, c := i, c
		g.Go(func() error {
			results[i] = r.collectOne(gctx, rt, c, full, hostMemory)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *ContainerMetricsReader) collectOne(ctx context.Context, rt docker.Runtime, c docker.Container, full bool, hostMemory uint64) model.ContainerMetrics {
	now := time.Now()
	if rec, ok := r.cache.Fresh(c.ID, c.State, now); ok {
		return rec
	}

	attrs, hadAttrs := r.cache.Attrs(c.ID)
	if full || !hadAttrs {
		detail, err := rt.InspectContainer(ctx, c.ID)
		if err != nil {
			r.logger.Warn("container inspect failed", "container", c.Name, "error", err)
		} else {
			attrs = deriveAttrs(detail)
		}
	}

	rec := model.ContainerMetrics{
		ID:          c.ID,
		Name:        c.Name,
		RuntimeName: c.Name,
		State:       c.State,
		CPUCount:    attrs.cpuCount,
		CPULimit:    attrs.cpuLimit,
		CPUShares:   attrs.cpuShares,
		LastUpdate:  now,
	}

	if c.State != model.StateRunning {
		r.cache.Record(c.ID, rec, attrs)
		return rec
	}

	rec.UptimeSeconds = r.uptime(c.ID, attrs, now)

	stats, err := rt.ContainerStats(ctx, c.ID)
	if err != nil {
		r.conn.NoteError(err)
		r.logger.Warn("container stats fetch failed", "container", c.Name, "error", err)
		if last, ok := r.cache.Last(c.ID); ok {
			return last
		}
		rec.State = model.StateError
		return rec
	}
	r.conn.NoteSuccess()

	rec.CPUPercent = CPUPercent(stats)
	if stats.CPUStats.OnlineCPUs > 0 {
		rec.CPUCount = stats.CPUStats.OnlineCPUs
	}
	rec.MemoryUsage = stats.MemoryStats.Usage
	rec.MemoryLimit = normalizeMemoryLimit(stats.MemoryStats.Limit, hostMemory)
	rec.NetworkRx, rec.NetworkTx = sumNetworks(stats.Networks)
	rec.IORead, rec.IOWrite = sumBlockIO(stats.BlkioStats.IoServiceBytesRecursive)

	r.cache.Record(c.ID, rec, attrs)
	return rec
}

// uptime extrapolates the cached uptime by the elapsed wall-clock time when
// possible and only falls back to the start timestamp for containers seen
// for the first time.
func (r *ContainerMetricsReader) uptime(id string, attrs containerAttrs, now time.Time) float64 {
	if last, ok := r.cache.Last(id); ok && last.Running() {
		return last.UptimeSeconds + now.Sub(last.LastUpdate).Seconds()
	}
	if !attrs.startedAt.IsZero() {
		return now.Sub(attrs.startedAt).Seconds()
	}
	return 0
}

func deriveAttrs(d docker.ContainerDetail) containerAttrs {
	attrs := containerAttrs{startedAt: d.StartedAt, known: true}
	switch {
	case d.NanoCPUs > 0:
		limit := float64(d.NanoCPUs) / 1e9
		attrs.cpuLimit = &limit
	case d.CPUPeriod > 0 && d.CPUQuota > 0:
		limit := float64(d.CPUQuota) / float64(d.CPUPeriod)
		attrs.cpuLimit = &limit
	}
	// 1024 is the cgroup default weight, not an explicit assignment.
	if d.CPUShares != 0 && d.CPUShares != 1024 {
		shares := d.CPUShares
		attrs.cpuShares = &shares
	}
	if d.CpusetCpus != "" {
		attrs.cpuCount = cpusetCount(d.CpusetCpus)
	}
	return attrs
}

func cpusetCount(cpuset string) uint32 {
	var n uint32
	for _, part := range strings.Split(cpuset, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// CPUPercent derives utilization from the cumulative counters of the
// current and previous sample. A missing or zero counter yields 0 rather
// than an error; the result is clamped at 100% per online CPU and rounded
// to two decimals.
func CPUPercent(s container.StatsResponse) float64 {
	cur := s.CPUStats.CPUUsage.TotalUsage
	prev := s.PreCPUStats.CPUUsage.TotalUsage
	curSys := s.CPUStats.SystemUsage
	prevSys := s.PreCPUStats.SystemUsage
	if cur == 0 || prev == 0 || curSys == 0 || prevSys == 0 {
		return 0
	}
	if cur <= prev || curSys <= prevSys {
		return 0
	}

	cpuDelta := float64(cur - prev)
	systemDelta := float64(curSys - prevSys)
	online := float64(s.CPUStats.OnlineCPUs)
	if online == 0 {
		online = 1
	}
	pct := (cpuDelta / systemDelta) * 100.0
	if limit := 100.0 * online; pct > limit {
		pct = limit
	}
	return math.Round(pct*100) / 100
}

// A reported limit equal to the host total means the container is
// unconstrained; 0 is the canonical "unlimited" value.
func normalizeMemoryLimit(limit, hostMemory uint64) uint64 {
	if hostMemory > 0 && limit == hostMemory {
		return 0
	}
	return limit
}

func sumNetworks(networks map[string]container.NetworkStats) (uint64, uint64) {
	var rx, tx uint64
	for _, n := range networks {
		rx += n.RxBytes
		tx += n.TxBytes
	}
	return rx, tx
}

func sumBlockIO(entries []container.BlkioStatEntry) (uint64, uint64) {
	var read, write uint64
	for _, e := range entries {
		switch {
		case strings.EqualFold(e.Op, "read"):
			read += e.Value
		case strings.EqualFold(e.Op, "write"):
			write += e.Value
		}
	}
	return read, write
}
