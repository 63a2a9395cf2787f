package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docker-core-monitor/internal/config"
	"docker-core-monitor/internal/model"
)

func TestNewSnapshotFrame(t *testing.T) {
	snap := model.Snapshot{
		Containers: map[string]model.ContainerMetrics{
			"abc": {ID: "abc", Name: "web", State: model.StateRunning},
		},
		Host:          model.HostInfo{MemoryTotal: 8 << 30, CPUCount: 2},
		Overrides:     model.NewNameOverrides(),
		TimestampUnix: 1700000000,
	}

	frame := NewSnapshotFrame("node-1", snap)
	assert.Equal(t, "node-1", frame.NodeID)
	assert.Equal(t, int64(1700000000), frame.TimestampUnix)
	assert.Equal(t, snap.Containers, frame.Containers)
	assert.Equal(t, snap.Host, frame.Host)
}

func TestEncodeEnvelope(t *testing.T) {
	env := model.Envelope{
		Type:          model.MetricTypeSnapshot,
		NodeID:        "node-1",
		TimestampUnix: 1700000000,
		Payload:       NewSnapshotFrame("node-1", model.Snapshot{TimestampUnix: 1700000000}),
	}

	raw, err := EncodeEnvelope(env)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.JSONEq(t, `"container_snapshot"`, string(decoded["type"]))
	assert.JSONEq(t, `"node-1"`, string(decoded["node_id"]))
	assert.Contains(t, decoded, "payload")
}

func TestNewSinkFromConfigDefaultsToNop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Config{StreamMode: config.StreamModeOff}
	sink, err := NewSinkFromConfig(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)

	cfg.StreamMode = config.StreamModeWebSocket
	cfg.BackendWSURL = "ws://127.0.0.1:3001/ws/metrics"
	sink, err = NewSinkFromConfig(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &WebSocketClient{}, sink)

	cfg.StreamMode = config.StreamModeGRPC
	cfg.BackendGRPCAddr = "127.0.0.1:3001"
	sink, err = NewSinkFromConfig(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &GRPCClient{}, sink)
}
