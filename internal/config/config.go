package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type StreamMode string

const (
	StreamModeOff       StreamMode = "off"
	StreamModeGRPC      StreamMode = "grpc"
	StreamModeWebSocket StreamMode = "websocket"
)

type Config struct {
	NodeID          string
	AgentVersion    string
	Hostname        string
	DockerHost      string
	DockerTimeout   time.Duration
	ProbeListenAddr string

	UpdateInterval     time.Duration
	EmitInterval       time.Duration
	FullUpdateInterval time.Duration
	CacheTTLRunning    time.Duration
	CacheTTLStopped    time.Duration
	BatchSize          int
	MaxWorkers         int
	BatchTimeout       time.Duration

	HealthInterval          time.Duration
	ReconnectInterval       time.Duration
	ReconnectErrorThreshold int
	MaxReconnectJitter      time.Duration
	CollectorErrorBackoff   time.Duration
	ShutdownTimeout         time.Duration

	NamesFile string

	StreamMode            StreamMode
	BackendGRPCAddr       string
	BackendWSURL          string
	BackendToken          string
	GRPCSnapshotMethod    string
	WebSocketWriteTimeout time.Duration
	WebSocketPingInterval time.Duration

	TLSEnabled    bool
	TLSSkipVerify bool
	TLSCAPath     string
	TLSCertPath   string
	TLSKeyPath    string

	LogJSON  bool
	LogLevel string
}

func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	cfg := Config{
		NodeID:          env("DCM_NODE_ID", hostname),
		AgentVersion:    env("DCM_AGENT_VERSION", "dev"),
		Hostname:        hostname,
		DockerHost:      env("DCM_DOCKER_HOST", ""),
		DockerTimeout:   envDuration("DCM_DOCKER_TIMEOUT", 30*time.Second),
		ProbeListenAddr: env("DCM_PROBE_ADDR", "0.0.0.0:7460"),

		UpdateInterval:     envDuration("DCM_UPDATE_INTERVAL", 2*time.Second),
		EmitInterval:       envDuration("DCM_EMIT_INTERVAL", 1*time.Second),
		FullUpdateInterval: envDuration("DCM_FULL_UPDATE_INTERVAL", 30*time.Second),
		CacheTTLRunning:    envDuration("DCM_CACHE_TTL_RUNNING", 3*time.Second),
		CacheTTLStopped:    envDuration("DCM_CACHE_TTL_STOPPED", 60*time.Second),
		BatchSize:          envInt("DCM_BATCH_SIZE", 10),
		MaxWorkers:         envInt("DCM_MAX_WORKERS", 20),
		BatchTimeout:       envDuration("DCM_BATCH_TIMEOUT", 25*time.Second),

		HealthInterval:          envDuration("DCM_HEALTH_INTERVAL", 10*time.Second),
		ReconnectInterval:       envDuration("DCM_RECONNECT_INTERVAL", 30*time.Second),
		ReconnectErrorThreshold: envInt("DCM_RECONNECT_ERROR_THRESHOLD", 5),
		MaxReconnectJitter:      envDuration("DCM_RECONNECT_MAX_JITTER", 900*time.Millisecond),
		CollectorErrorBackoff:   envDuration("DCM_COLLECTOR_ERROR_BACKOFF", 5*time.Second),
		ShutdownTimeout:         envDuration("DCM_SHUTDOWN_TIMEOUT", 20*time.Second),

		NamesFile: env("DCM_NAMES_FILE", "data/custom_names.json"),

		StreamMode:            StreamMode(strings.ToLower(env("DCM_STREAM_MODE", string(StreamModeOff)))),
		BackendGRPCAddr:       env("DCM_BACKEND_GRPC_ADDR", "127.0.0.1:3001"),
		BackendWSURL:          env("DCM_BACKEND_WS_URL", "ws://127.0.0.1:3001/ws/metrics"),
		BackendToken:          env("DCM_BACKEND_TOKEN", ""),
		GRPCSnapshotMethod:    env("DCM_GRPC_SNAPSHOT_METHOD", "/dcm.metrics.v1.MetricsService/StreamSnapshots"),
		WebSocketWriteTimeout: envDuration("DCM_WS_WRITE_TIMEOUT", 5*time.Second),
		WebSocketPingInterval: envDuration("DCM_WS_PING_INTERVAL", 10*time.Second),

		TLSEnabled:    envBool("DCM_TLS_ENABLED", false),
		TLSSkipVerify: envBool("DCM_TLS_SKIP_VERIFY", false),
		TLSCAPath:     env("DCM_TLS_CA_PATH", ""),
		TLSCertPath:   env("DCM_TLS_CERT_PATH", ""),
		TLSKeyPath:    env("DCM_TLS_KEY_PATH", ""),

		LogJSON:  envBool("DCM_LOG_JSON", true),
		LogLevel: strings.ToLower(env("DCM_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("DCM_NODE_ID is required")
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("DCM_PROBE_ADDR is required")
	}
	if c.UpdateInterval <= 0 || c.EmitInterval <= 0 {
		return errors.New("update/emit intervals must be > 0")
	}
	if c.FullUpdateInterval <= 0 {
		return errors.New("DCM_FULL_UPDATE_INTERVAL must be > 0")
	}
	if c.CacheTTLRunning < 0 || c.CacheTTLStopped < 0 {
		return errors.New("cache TTLs must be >= 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("DCM_BATCH_SIZE must be > 0")
	}
	if c.MaxWorkers <= 0 {
		return errors.New("DCM_MAX_WORKERS must be > 0")
	}
	if c.BatchTimeout <= 0 {
		return errors.New("DCM_BATCH_TIMEOUT must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("DCM_HEALTH_INTERVAL must be > 0")
	}
	if c.ReconnectInterval <= 0 {
		return errors.New("DCM_RECONNECT_INTERVAL must be > 0")
	}
	if c.ReconnectErrorThreshold <= 0 {
		return errors.New("DCM_RECONNECT_ERROR_THRESHOLD must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("DCM_SHUTDOWN_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.NamesFile) == "" {
		return errors.New("DCM_NAMES_FILE is required")
	}
	switch c.StreamMode {
	case StreamModeOff, StreamModeGRPC, StreamModeWebSocket:
	default:
		return fmt.Errorf("unsupported stream mode %q", c.StreamMode)
	}
	if c.StreamMode == StreamModeGRPC {
		if c.BackendGRPCAddr == "" {
			return errors.New("DCM_BACKEND_GRPC_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCSnapshotMethod) == "" {
			return errors.New("DCM_GRPC_SNAPSHOT_METHOD is required for grpc mode")
		}
	}
	if c.StreamMode == StreamModeWebSocket && c.BackendWSURL == "" {
		return errors.New("DCM_BACKEND_WS_URL is required for websocket mode")
	}
	return nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
