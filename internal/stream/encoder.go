package stream

import (
	"encoding/json"
	"time"

	"docker-core-monitor/internal/model"
)

// Sink is the push-based transport collaborator: it receives the published
// Snapshot once per emit tick. Send failures must be returned, not
// swallowed, so the scheduler can log and back off.
type Sink interface {
	SendSnapshot(ctx Context, nodeID string, snap model.Snapshot) error
	Close(ctx Context) error
}

type Context interface {
	Done() <-chan struct{}
	Err() error
	Deadline() (time.Time, bool)
	Value(key any) any
}

type SnapshotFrame struct {
	NodeID        string                            `json:"node_id"`
	TimestampUnix int64                             `json:"timestamp_unix"`
	Containers    map[string]model.ContainerMetrics `json:"containers"`
	Host          model.HostInfo                    `json:"host"`
	Overrides     model.NameOverrides               `json:"overrides"`
}

func NewSnapshotFrame(nodeID string, snap model.Snapshot) SnapshotFrame {
	return SnapshotFrame{
		NodeID:        nodeID,
		TimestampUnix: snap.TimestampUnix,
		Containers:    snap.Containers,
		Host:          snap.Host,
		Overrides:     snap.Overrides,
	}
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}
