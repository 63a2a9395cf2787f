package docker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docker-core-monitor/internal/model"
)

type stubRuntime struct {
	mu     sync.Mutex
	closed int
}

func (s *stubRuntime) Ping(context.Context) error { return nil }

func (s *stubRuntime) ListContainers(context.Context, bool) ([]Container, error) {
	return nil, nil
}

func (s *stubRuntime) InspectContainer(context.Context, string) (ContainerDetail, error) {
	return ContainerDetail{}, nil
}

func (s *stubRuntime) ContainerStats(context.Context, string) (container.StatsResponse, error) {
	return container.StatsResponse{}, nil
}

func (s *stubRuntime) HostInfo(context.Context) (model.HostInfo, error) {
	return model.HostInfo{}, nil
}

func (s *stubRuntime) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnManagerDialsOnce(t *testing.T) {
	dials := 0
	m := NewConnManager(func(context.Context) (Runtime, error) {
		dials++
		return &stubRuntime{}, nil
	}, 5, time.Minute, 0, discardLogger())

	a, err := m.Client(context.Background())
	require.NoError(t, err)
	b, err := m.Client(context.Background())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, dials)
	assert.True(t, m.Connected())
}

func TestConnManagerRecreatesClientAfterErrorThreshold(t *testing.T) {
	dials := 0
	var handles []*stubRuntime
	m := NewConnManager(func(context.Context) (Runtime, error) {
		dials++
		rt := &stubRuntime{}
		handles = append(handles, rt)
		return rt, nil
	}, 5, time.Minute, 0, discardLogger())

	_, err := m.Client(context.Background())
	require.NoError(t, err)

	boom := errors.New("stats failed")
	for i := 0; i < 4; i++ {
		m.NoteError(boom)
	}
	// Below the threshold the existing handle keeps being reused.
	_, err = m.Client(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dials)

	m.NoteError(boom)
	assert.Equal(t, 5, m.ConsecutiveErrors())

	_, err = m.Client(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
	assert.Equal(t, 1, handles[0].closed)
	assert.Equal(t, 0, m.ConsecutiveErrors())
}

func TestConnManagerNoteSuccessResetsCounter(t *testing.T) {
	m := NewConnManager(func(context.Context) (Runtime, error) {
		return &stubRuntime{}, nil
	}, 5, time.Minute, 0, discardLogger())

	m.NoteError(errors.New("x"))
	m.NoteError(errors.New("x"))
	assert.Equal(t, 2, m.ConsecutiveErrors())

	m.NoteSuccess()
	assert.Equal(t, 0, m.ConsecutiveErrors())
}

func TestConnManagerClientPropagatesDialError(t *testing.T) {
	boom := errors.New("daemon down")
	m := NewConnManager(func(context.Context) (Runtime, error) {
		return nil, boom
	}, 5, time.Minute, 0, discardLogger())

	_, err := m.Client(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.Connected())
}

func TestConnManagerCloseReleasesHandle(t *testing.T) {
	rt := &stubRuntime{}
	m := NewConnManager(func(context.Context) (Runtime, error) {
		return rt, nil
	}, 5, time.Minute, 0, discardLogger())

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Close())
	assert.Equal(t, 1, rt.closed)
	assert.Equal(t, StateDisconnected, m.State())
}
