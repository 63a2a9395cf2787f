package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docker-core-monitor/internal/collector"
	"docker-core-monitor/internal/config"
	"docker-core-monitor/internal/docker"
	"docker-core-monitor/internal/docker/metric"
	"docker-core-monitor/internal/model"
	"docker-core-monitor/internal/store"
	"docker-core-monitor/internal/stream"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	conn      *docker.ConnManager
	scheduler *collector.Scheduler
	publisher *collector.Publisher
	sink      stream.Sink
	health    *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	sink, err := stream.NewSinkFromConfig(cfg, tlsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("stream sink: %w", err)
	}

	health := NewHealthStatus()
	wrappedSink := &healthSink{sink: sink, health: health}

	conn := docker.NewConnManager(
		docker.Dialer(cfg.DockerHost, cfg.DockerTimeout),
		cfg.ReconnectErrorThreshold,
		cfg.ReconnectInterval,
		cfg.MaxReconnectJitter,
		logger,
	)
	cache := metric.NewCache(cfg.CacheTTLRunning, cfg.CacheTTLStopped)
	reader := metric.NewContainerMetricsReader(conn, cache, logger, cfg.BatchSize, cfg.MaxWorkers, cfg.BatchTimeout)
	names := store.Open(cfg.NamesFile, logger)
	containers := collector.NewContainerCollector(reader, names, logger, cfg.FullUpdateInterval)

	publisher := collector.NewPublisher()
	publisher.Subscribe(func(s *model.Snapshot) {
		if s != nil && s.TimestampUnix > 0 {
			health.MarkSnapshot(time.Unix(s.TimestampUnix, 0).UTC())
		}
	})

	scheduler := collector.NewScheduler(
		logger,
		containers,
		publisher,
		wrappedSink,
		cfg.NodeID,
		cfg.UpdateInterval,
		cfg.EmitInterval,
		cfg.CollectorErrorBackoff,
	)

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		conn:      conn,
		scheduler: scheduler,
		publisher: publisher,
		sink:      wrappedSink,
		health:    health,
	}, nil
}

// Snapshots exposes the publisher for transport collaborators embedding the
// agent.
func (a *Agent) Snapshots() *collector.Publisher {
	return a.publisher
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting docker-core-monitor", "node_id", a.cfg.NodeID, "version", a.cfg.AgentVersion, "docker_host", a.cfg.DockerHost)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("docker-core-monitor stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) SendSnapshot(ctx stream.Context, nodeID string, snap model.Snapshot) error {
	err := s.sink.SendSnapshot(ctx, nodeID, snap)
	if err != nil {
		s.health.SetStreamConnected(false)
		return err
	}
	s.health.SetStreamConnected(true)
	return nil
}

func (s *healthSink) Close(ctx stream.Context) error {
	return s.sink.Close(ctx)
}
