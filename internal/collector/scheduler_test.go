package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docker-core-monitor/internal/docker"
	"docker-core-monitor/internal/model"
	"docker-core-monitor/internal/stream"
)

type captureSink struct {
	mu     sync.Mutex
	frames []model.Snapshot
	nodeID string
	closed bool
}

func (s *captureSink) SendSnapshot(_ stream.Context, nodeID string, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeID = nodeID
	s.frames = append(s.frames, snap)
	return nil
}

func (s *captureSink) Close(stream.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestSchedulerPublishesAndEmits(t *testing.T) {
	rt := newFakeRuntime(docker.Container{ID: "a", Name: "web", State: model.StateRunning})
	rt.stats["a"] = runningStats()
	c, _ := newTestCollector(t, rt)

	pub := NewPublisher()
	sink := &captureSink{}
	s := NewScheduler(testLogger(), c, pub, sink, "node-1", 50*time.Millisecond, 20*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	snap := pub.Current()
	require.NotNil(t, snap)
	assert.Contains(t, snap.Containers, "a")

	assert.Greater(t, sink.frameCount(), 0)
	assert.Equal(t, "node-1", sink.nodeID)
}

func TestSchedulerEmitSkipsUntilFirstSnapshot(t *testing.T) {
	pub := NewPublisher()
	sink := &captureSink{}
	s := NewScheduler(testLogger(), nil, pub, sink, "node-1", time.Hour, 10*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	require.NoError(t, s.runEmitLoop(ctx))

	assert.Equal(t, 0, sink.frameCount())
}
