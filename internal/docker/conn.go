package docker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// DialFunc creates a fresh Runtime handle.
type DialFunc func(ctx context.Context) (Runtime, error)

// ConnManager owns the single Docker runtime handle and the reconnect flow.
// It tracks consecutive call failures reported by callers; once the count
// passes the threshold the next Client call re-dials before handing the
// runtime out. A background loop (RunReconnectLoop) re-dials periodically
// while the handle is absent, so polling resumes on its own when the daemon
// comes back.
type ConnManager struct {
	mu        sync.RWMutex
	rt        Runtime
	state     ConnState
	errCount  int
	dial      DialFunc
	threshold int
	retryWait time.Duration
	maxJitter time.Duration
	logger    *slog.Logger
	randSrc   *rand.Rand
}

func NewConnManager(dial DialFunc, threshold int, retryWait, maxJitter time.Duration, logger *slog.Logger) *ConnManager {
	if threshold <= 0 {
		threshold = 5
	}
	if retryWait <= 0 {
		retryWait = 30 * time.Second
	}
	if maxJitter < 0 {
		maxJitter = 0
	}
	return &ConnManager{
		state:     StateDisconnected,
		dial:      dial,
		threshold: threshold,
		retryWait: retryWait,
		maxJitter: maxJitter,
		logger:    logger,
		randSrc:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connect performs a single dial attempt.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

// Client returns the current runtime handle, dialing if the handle is
// absent or the consecutive-error count has reached the threshold.
func (m *ConnManager) Client(ctx context.Context) (Runtime, error) {
	m.mu.RLock()
	rt, errCount := m.rt, m.errCount
	m.mu.RUnlock()
	if rt != nil && errCount < m.threshold {
		return rt, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rt != nil && m.errCount >= m.threshold {
		m.logger.Warn("docker error threshold reached, recreating client", "consecutive_errors", m.errCount)
		m.closeLocked()
	}
	if m.rt == nil {
		if err := m.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return m.rt, nil
}

// NoteSuccess resets the consecutive-error counter after a successful
// runtime call.
func (m *ConnManager) NoteSuccess() {
	m.mu.Lock()
	m.errCount = 0
	m.mu.Unlock()
}

// NoteError records a failed runtime call.
func (m *ConnManager) NoteError(err error) {
	m.mu.Lock()
	m.errCount++
	count := m.errCount
	m.mu.Unlock()
	callErrors.Inc()
	m.logger.Warn("docker call failed", "error", err, "consecutive_errors", count)
}

func (m *ConnManager) ConsecutiveErrors() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errCount
}

func (m *ConnManager) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *ConnManager) Connected() bool {
	return m.State() == StateConnected
}

// RunReconnectLoop re-dials on a fixed cadence whenever the handle is
// absent. It runs independently of the update cycle.
func (m *ConnManager) RunReconnectLoop(ctx context.Context) error {
	t := time.NewTicker(m.retryWait + m.jitter())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.mu.Lock()
			if m.rt == nil {
				if err := m.connectLocked(ctx); err != nil {
					m.logger.Error("docker reconnect failed", "error", err)
				}
			}
			m.mu.Unlock()
			t.Reset(m.retryWait + m.jitter())
		}
	}
}

func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rt == nil {
		return nil
	}
	err := m.rt.Close()
	m.rt = nil
	m.state = StateDisconnected
	return err
}

func (m *ConnManager) connectLocked(ctx context.Context) error {
	if m.rt != nil {
		return nil
	}
	m.state = StateConnecting
	rt, err := m.dial(ctx)
	if err != nil {
		m.state = StateDisconnected
		return fmt.Errorf("dial docker: %w", err)
	}
	m.rt = rt
	m.state = StateConnected
	m.errCount = 0
	reconnects.Inc()
	m.logger.Info("docker connected")
	return nil
}

func (m *ConnManager) closeLocked() {
	if m.rt != nil {
		if err := m.rt.Close(); err != nil {
			m.logger.Warn("docker close failed", "error", err)
		}
		m.rt = nil
	}
	m.state = StateDisconnected
}

func (m *ConnManager) jitter() time.Duration {
	if m.maxJitter == 0 {
		return 0
	}
	return time.Duration(m.randSrc.Int63n(int64(m.maxJitter)))
}
