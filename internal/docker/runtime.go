package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"docker-core-monitor/internal/model"
)

// Container is one entry of a runtime enumeration.
type Container struct {
	ID    string
	Name  string
	State string
}

// ContainerDetail carries the rarely-changing attributes read from inspect:
// the start timestamp plus the cgroup CPU configuration.
type ContainerDetail struct {
	StartedAt  time.Time
	NanoCPUs   int64
	CPUPeriod  int64
	CPUQuota   int64
	CPUShares  int64
	CpusetCpus string
}

// Runtime is the container-runtime surface the collector depends on.
// ContainerStats may block on the daemon; callers bound it with the
// request context.
type Runtime interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, all bool) ([]Container, error)
	InspectContainer(ctx context.Context, id string) (ContainerDetail, error)
	ContainerStats(ctx context.Context, id string) (container.StatsResponse, error)
	HostInfo(ctx context.Context) (model.HostInfo, error)
	Close() error
}

type apiRuntime struct {
	cli *client.Client
}

// Dialer builds a DialFunc that connects to the Docker daemon and verifies
// the connection with a ping before handing the runtime out. An empty host
// keeps the client on DOCKER_HOST/platform defaults.
func Dialer(host string, timeout time.Duration) DialFunc {
	return func(ctx context.Context) (Runtime, error) {
		opts := []client.Opt{
			client.FromEnv,
			client.WithAPIVersionNegotiation(),
		}
		if host != "" {
			opts = append(opts, client.WithHost(host))
		}
		if timeout > 0 {
			opts = append(opts, client.WithTimeout(timeout))
		}
		cli, err := client.NewClientWithOpts(opts...)
		if err != nil {
			return nil, fmt.Errorf("create docker client: %w", err)
		}
		if _, err := cli.Ping(ctx); err != nil {
			_ = cli.Close()
			return nil, fmt.Errorf("docker ping: %w", err)
		}
		return &apiRuntime{cli: cli}, nil
	}
}

func (r *apiRuntime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	return nil
}

func (r *apiRuntime) ListContainers(ctx context.Context, all bool) ([]Container, error) {
	list, err := r.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("ContainerList: %w", err)
	}
	out := make([]Container, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, Container{ID: c.ID, Name: name, State: string(c.State)})
	}
	return out, nil
}

func (r *apiRuntime) InspectContainer(ctx context.Context, id string) (ContainerDetail, error) {
	resp, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerDetail{}, fmt.Errorf("ContainerInspect %s: %w", id, err)
	}
	detail := ContainerDetail{}
	if resp.State != nil && resp.State.StartedAt != "" {
		if ts, parseErr := time.Parse(time.RFC3339Nano, resp.State.StartedAt); parseErr == nil {
			detail.StartedAt = ts
		}
	}
	if resp.HostConfig != nil {
		detail.NanoCPUs = resp.HostConfig.NanoCPUs
		detail.CPUPeriod = resp.HostConfig.CPUPeriod
		detail.CPUQuota = resp.HostConfig.CPUQuota
		detail.CPUShares = resp.HostConfig.CPUShares
		detail.CpusetCpus = resp.HostConfig.CpusetCpus
	}
	return detail, nil
}

func (r *apiRuntime) ContainerStats(ctx context.Context, id string) (container.StatsResponse, error) {
	reader, err := r.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return container.StatsResponse{}, fmt.Errorf("ContainerStats %s: %w", id, err)
	}
	defer func() { _ = reader.Body.Close() }()

	var stats container.StatsResponse
	if err := json.NewDecoder(reader.Body).Decode(&stats); err != nil {
		return container.StatsResponse{}, fmt.Errorf("decode stats %s: %w", id, err)
	}
	return stats, nil
}

func (r *apiRuntime) HostInfo(ctx context.Context) (model.HostInfo, error) {
	info, err := r.cli.Info(ctx)
	if err != nil {
		return model.HostInfo{}, fmt.Errorf("docker info: %w", err)
	}
	host := model.HostInfo{CPUCount: info.NCPU}
	if info.MemTotal > 0 {
		host.MemoryTotal = uint64(info.MemTotal)
	}
	return host, nil
}

func (r *apiRuntime) Close() error {
	return r.cli.Close()
}
