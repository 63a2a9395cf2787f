package collector

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docker-core-monitor/internal/docker"
	"docker-core-monitor/internal/docker/metric"
	"docker-core-monitor/internal/model"
	"docker-core-monitor/internal/store"
)

type fakeRuntime struct {
	mu         sync.Mutex
	containers []docker.Container
	stats      map[string]container.StatsResponse
	statsErr   map[string]error
	listErr    error
	host       model.HostInfo
}

func newFakeRuntime(containers ...docker.Container) *fakeRuntime {
	return &fakeRuntime{
		containers: containers,
		stats:      map[string]container.StatsResponse{},
		statsErr:   map[string]error{},
		host:       model.HostInfo{MemoryTotal: 16 << 30, CPUCount: 4},
	}
}

func (f *fakeRuntime) Ping(context.Context) error { return nil }

func (f *fakeRuntime) ListContainers(_ context.Context, all bool) ([]docker.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if all {
		return append([]docker.Container(nil), f.containers...), nil
	}
	out := []docker.Container{}
	for _, c := range f.containers {
		if c.State == model.StateRunning {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRuntime) InspectContainer(_ context.Context, _ string) (docker.ContainerDetail, error) {
	return docker.ContainerDetail{StartedAt: time.Now().Add(-time.Minute)}, nil
}

func (f *fakeRuntime) ContainerStats(_ context.Context, id string) (container.StatsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statsErr[id]; err != nil {
		return container.StatsResponse{}, err
	}
	return f.stats[id], nil
}

func (f *fakeRuntime) HostInfo(context.Context) (model.HostInfo, error) { return f.host, nil }

func (f *fakeRuntime) Close() error { return nil }

func (f *fakeRuntime) setContainers(containers ...docker.Container) {
	f.mu.Lock()
	f.containers = containers
	f.mu.Unlock()
}

func (f *fakeRuntime) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func runningStats() container.StatsResponse {
	s := container.StatsResponse{}
	s.PreCPUStats.CPUUsage.TotalUsage = 1_000_000_000
	s.CPUStats.CPUUsage.TotalUsage = 1_200_000_000
	s.PreCPUStats.SystemUsage = 10_000_000_000
	s.CPUStats.SystemUsage = 12_000_000_000
	s.CPUStats.OnlineCPUs = 2
	s.MemoryStats.Usage = 64 << 20
	s.MemoryStats.Limit = 1 << 30
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCollector(t *testing.T, rt docker.Runtime) (*ContainerCollector, *store.NameStore) {
	t.Helper()
	conn := docker.NewConnManager(func(context.Context) (docker.Runtime, error) {
		return rt, nil
	}, 5, time.Minute, 0, testLogger())
	reader := metric.NewContainerMetricsReader(conn, metric.NewCache(time.Minute, time.Minute), testLogger(), 10, 20, time.Second)
	names := store.Open(filepath.Join(t.TempDir(), "custom_names.json"), testLogger())
	return NewContainerCollector(reader, names, testLogger(), 30*time.Second), names
}

func TestRefreshPartialCarriesStoppedRecordsForward(t *testing.T) {
	rt := newFakeRuntime(
		docker.Container{ID: "a", Name: "web", State: model.StateRunning},
		docker.Container{ID: "b", Name: "db", State: "exited"},
	)
	rt.stats["a"] = runningStats()
	c, _ := newTestCollector(t, rt)

	// First cycle is always full: the stopped container enters the map.
	first, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Contains(t, first.Containers, "a")
	require.Contains(t, first.Containers, "b")
	stopped := first.Containers["b"]

	// The next cycle is partial and only sees running containers, yet the
	// stopped record survives untouched.
	second, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Contains(t, second.Containers, "a")
	require.Contains(t, second.Containers, "b")
	assert.Equal(t, stopped, second.Containers["b"])
}

func TestRefreshFullRebuildsFromEnumeration(t *testing.T) {
	rt := newFakeRuntime(
		docker.Container{ID: "a", Name: "web", State: model.StateRunning},
		docker.Container{ID: "b", Name: "db", State: "exited"},
	)
	rt.stats["a"] = runningStats()
	c, _ := newTestCollector(t, rt)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	rt.setContainers(docker.Container{ID: "a", Name: "web", State: model.StateRunning})
	c.mu.Lock()
	c.lastFull = time.Now().Add(-time.Hour)
	c.mu.Unlock()

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Containers, "a")
	assert.NotContains(t, snap.Containers, "b")
}

func TestRefreshFailureLeavesRecordsUntouched(t *testing.T) {
	rt := newFakeRuntime(docker.Container{ID: "a", Name: "web", State: model.StateRunning})
	rt.stats["a"] = runningStats()
	c, _ := newTestCollector(t, rt)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	rt.setListErr(context.DeadlineExceeded)
	_, err = c.Refresh(context.Background())
	require.Error(t, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Contains(t, c.records, "a")
}

func TestRefreshDropsErrorRecords(t *testing.T) {
	rt := newFakeRuntime(
		docker.Container{ID: "a", Name: "web", State: model.StateRunning},
		docker.Container{ID: "c", Name: "broken", State: model.StateRunning},
	)
	rt.stats["a"] = runningStats()
	rt.statsErr["c"] = context.DeadlineExceeded
	c, _ := newTestCollector(t, rt)

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Containers, "a")
	assert.NotContains(t, snap.Containers, "c")
}

func TestSnapshotAppliesNameOverrides(t *testing.T) {
	rt := newFakeRuntime(docker.Container{ID: "a", Name: "web", State: model.StateRunning})
	rt.stats["a"] = runningStats()
	c, names := newTestCollector(t, rt)
	names.SetContainerName("web", "frontend")

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Contains(t, snap.Containers, "a")
	assert.Equal(t, "frontend", snap.Containers["a"].Name)
	assert.Equal(t, "web", snap.Containers["a"].RuntimeName)
	assert.Equal(t, "frontend", snap.Overrides.Containers["web"])
}

func TestSnapshotCarriesHostTotals(t *testing.T) {
	rt := newFakeRuntime(docker.Container{ID: "a", Name: "web", State: model.StateRunning})
	rt.stats["a"] = runningStats()
	c, _ := newTestCollector(t, rt)

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.HostInfo{MemoryTotal: 16 << 30, CPUCount: 4}, snap.Host)
	assert.NotZero(t, snap.TimestampUnix)
}
