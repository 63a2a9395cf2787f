package model

import "time"

const (
	StateRunning = "running"
	// StateError marks a synthesized record for a container whose stats
	// could not be fetched and for which no cached record exists.
	StateError = "error"
)

// ContainerMetrics is the normalized per-container record derived from one
// Docker stats sample. Cumulative counters (network, block I/O) are summed
// across interfaces/devices; CPULimit and CPUShares stay nil when the
// container carries no explicit cgroup configuration.
type ContainerMetrics struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	RuntimeName string   `json:"runtime_name"`
	State       string   `json:"state"`
	CPUPercent  float64  `json:"cpu_percent"`
	CPUCount    uint32   `json:"cpu_count"`
	CPULimit    *float64 `json:"cpu_limit,omitempty"`
	CPUShares   *int64   `json:"cpu_shares,omitempty"`
	MemoryUsage uint64   `json:"memory_usage"`
	// MemoryLimit of 0 means unlimited.
	MemoryLimit   uint64    `json:"memory_limit"`
	NetworkRx     uint64    `json:"network_rx"`
	NetworkTx     uint64    `json:"network_tx"`
	IORead        uint64    `json:"io_read"`
	IOWrite       uint64    `json:"io_write"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	LastUpdate    time.Time `json:"last_update"`
}

func (m ContainerMetrics) Running() bool {
	return m.State == StateRunning
}
