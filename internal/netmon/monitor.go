// Package netmon tracks whether the server is reachable and tells
// subscribers about every change.
//
// The monitor starts unreachable. Reachability is fed either directly with
// Set or by Watch, which polls a Prober.
package netmon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/dmitrijs2005/offsync/internal/logging"
)

type subscriber struct {
	id uint64
	fn func(reachable bool)
}

type Monitor struct {
	log    logging.Logger
	online atomic.Bool

	// notifyMu serializes transitions so subscribers observe them in order.
	notifyMu sync.Mutex

	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

func New(log logging.Logger) *Monitor {
	return &Monitor{log: log}
}

// Current returns the last known reachability. It never blocks.
func (m *Monitor) Current() bool {
	return m.online.Load()
}

// Subscribe registers fn to be called once per transition, never on steady
// state. fn must not call Set.
func (m *Monitor) Subscribe(fn func(reachable bool)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Set records the platform's view of reachability and notifies subscribers
// if it changed. A panicking subscriber is logged and skipped.
func (m *Monitor) Set(reachable bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	if m.online.Swap(reachable) == reachable {
		return
	}

	ctx := context.Background()
	m.log.Info(ctx, "network status changed", "online", reachable)

	m.mu.Lock()
	subs := append([]subscriber(nil), m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		var pc panics.Catcher
		pc.Try(func() { s.fn(reachable) })
		if r := pc.Recovered(); r != nil {
			m.log.Error(ctx, "network status subscriber panicked", "subscriber", s.id, "panic", r.Value)
		}
	}
}

// Watch probes p immediately and then every interval until ctx is done,
// feeding each outcome to Set. Each probe is bounded by timeout.
//
// Without a prober there is nothing to observe: Watch logs a warning, marks
// the server reachable and returns.
func (m *Monitor) Watch(ctx context.Context, p Prober, interval, timeout time.Duration) {
	if p == nil {
		m.log.Warn(ctx, "no reachability prober configured, assuming online")
		m.Set(true)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.probe(ctx, p, timeout)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context, p Prober, timeout time.Duration) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	err := p.Probe(pctx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.log.Debug(ctx, "reachability probe failed", "error", err)
	}
	m.Set(err == nil)
}
