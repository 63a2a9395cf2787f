package collector

import (
	"sync"
	"sync/atomic"

	"docker-core-monitor/internal/model"
)

// Publisher holds the latest Snapshot behind an atomic pointer. The single
// writer replaces the value wholesale; readers get a complete, immutable
// Snapshot without locking. Subscribers are invoked once per publish.
type Publisher struct {
	current atomic.Pointer[model.Snapshot]

	mu   sync.Mutex
	subs []func(*model.Snapshot)
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Current returns the most recently published Snapshot, or nil before the
// first publish. Callers must not mutate the returned value.
func (p *Publisher) Current() *model.Snapshot {
	return p.current.Load()
}

// Subscribe registers a callback fired after every publish. Callbacks run
// on the publishing goroutine and should return quickly.
func (p *Publisher) Subscribe(fn func(*model.Snapshot)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

func (p *Publisher) Publish(s *model.Snapshot) {
	p.current.Store(s)
	p.mu.Lock()
	subs := append(([]func(*model.Snapshot))(nil), p.subs...)
	p.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}
