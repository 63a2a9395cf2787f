package model

// HostInfo holds the host totals reported by the Docker daemon, refreshed
// once per update cycle.
type HostInfo struct {
	MemoryTotal uint64 `json:"memory_total"`
	CPUCount    int    `json:"cpu_count"`
}

// Snapshot is the consolidated view handed to readers. It is built once per
// update cycle and replaced atomically; a published Snapshot is never
// mutated afterwards.
type Snapshot struct {
	Containers    map[string]ContainerMetrics `json:"containers"`
	Host          HostInfo                    `json:"host"`
	Overrides     NameOverrides               `json:"overrides"`
	TimestampUnix int64                       `json:"timestamp_unix"`
}
