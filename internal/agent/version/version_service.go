package version

import (
	"time"

	"docker-core-monitor/internal/config"
)

func Get(cfg config.Config, _ *GetVersionRequest) *GetVersionResponse {
	return &GetVersionResponse{
		NodeID:          cfg.NodeID,
		AgentVersion:    cfg.AgentVersion,
		StreamMode:      string(cfg.StreamMode),
		ProbeListenAddr: cfg.ProbeListenAddr,
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
