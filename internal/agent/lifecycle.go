package agent

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

func (a *Agent) run(ctx context.Context) error {
	if err := a.conn.Connect(ctx); err != nil {
		a.logger.Warn("initial docker connect failed, reconnect loop takes over", "error", err)
	}
	a.health.SetDockerConnected(a.conn.Connected())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.conn.RunReconnectLoop(gctx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeServer(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			rt, err := a.conn.Client(ctx)
			if err != nil {
				a.health.SetDockerConnected(false)
				continue
			}
			if err := rt.Ping(ctx); err != nil {
				a.conn.NoteError(err)
				a.health.SetDockerConnected(false)
				continue
			}
			a.conn.NoteSuccess()
			a.health.SetDockerConnected(true)
		}
	}
}

func (a *Agent) shutdown(ctx context.Context) {
	if err := a.sink.Close(ctx); err != nil {
		a.logger.Warn("stream sink close failed", "error", err)
	}
	a.health.SetStreamConnected(false)
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("docker close failed", "error", err)
	}
	a.health.SetDockerConnected(false)
}
