package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"docker-core-monitor/internal/stream"
)

// Scheduler drives the two cadences: the update loop that refreshes the
// collector and publishes a new Snapshot, and the emit loop that pushes the
// current Snapshot to the stream sink. The loops are independent; a slow or
// failing sink never delays collection.
type Scheduler struct {
	logger         *slog.Logger
	collector      *ContainerCollector
	publisher      *Publisher
	sink           stream.Sink
	nodeID         string
	updateInterval time.Duration
	emitInterval   time.Duration
	errorBackoff   time.Duration
}

func NewScheduler(
	logger *slog.Logger,
	collector *ContainerCollector,
	publisher *Publisher,
	sink stream.Sink,
	nodeID string,
	updateInterval, emitInterval, errorBackoff time.Duration,
) *Scheduler {
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	return &Scheduler{
		logger:         logger,
		collector:      collector,
		publisher:      publisher,
		sink:           sink,
		nodeID:         nodeID,
		updateInterval: updateInterval,
		emitInterval:   emitInterval,
		errorBackoff:   errorBackoff,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.runUpdateLoop(gctx)
	})
	g.Go(func() error {
		return s.runEmitLoop(gctx)
	})
	return g.Wait()
}

func (s *Scheduler) runUpdateLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	if err := s.refreshAndPublish(ctx); err != nil {
		s.logger.Warn("initial container update failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.refreshAndPublish(ctx); err != nil {
				s.logger.Error("container update failed", "error", err)
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) runEmitLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.emitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := s.publisher.Current()
			if snap == nil {
				continue
			}
			if err := s.sink.SendSnapshot(ctx, s.nodeID, *snap); err != nil {
				emitErrors.Inc()
				s.logger.Warn("snapshot emit failed", "error", err)
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) refreshAndPublish(ctx context.Context) error {
	start := time.Now()
	snap, err := s.collector.Refresh(ctx)
	if err != nil {
		return err
	}
	cycleDuration.Observe(time.Since(start).Seconds())
	s.publisher.Publish(snap)
	return nil
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
