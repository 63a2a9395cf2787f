package stream

import (
	"crypto/tls"
	"log/slog"

	"docker-core-monitor/internal/config"
	"docker-core-monitor/internal/model"
)

func NewSinkFromConfig(cfg config.Config, tlsCfg *tls.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.StreamMode {
	case config.StreamModeWebSocket:
		return NewWebSocketClient(cfg.BackendWSURL, cfg.BackendToken, tlsCfg, cfg.WebSocketWriteTimeout, cfg.WebSocketPingInterval, logger), nil
	case config.StreamModeGRPC:
		return NewGRPCClient(cfg.BackendGRPCAddr, tlsCfg, cfg.BackendToken, cfg.GRPCSnapshotMethod, logger), nil
	default:
		return NopSink{}, nil
	}
}

// NopSink discards snapshots; used when no streaming backend is configured.
type NopSink struct{}

func (NopSink) SendSnapshot(Context, string, model.Snapshot) error { return nil }
func (NopSink) Close(Context) error                                { return nil }
