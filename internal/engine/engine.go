package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/transport"
)

type State int32

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	if s == StateDraining {
		return "draining"
	}
	return "idle"
}

type MutationQueue interface {
	ListPending(ctx context.Context) ([]*models.PendingMutation, error)
	Remove(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) (int, bool, error)
	MarkDrained(ctx context.Context, t time.Time) error
}

type ShadowRemover interface {
	Remove(ctx context.Context, localID string) error
}

type NetworkStatus interface {
	Current() bool
	Subscribe(fn func(reachable bool)) (unsubscribe func())
}

type Engine struct {
	queue   MutationQueue
	shadows ShadowRemover
	net     NetworkStatus
	exec    transport.Executor
	log     logging.Logger

	handlers []EventHandler
	now      func() time.Time
	meter    metric.Meter

	state atomic.Int32

	mu     sync.Mutex
	wg     conc.WaitGroup
	unsub  func()
	closed bool

	drains    metric.Int64Counter
	mutations metric.Int64Counter
	duration  metric.Float64Histogram
}

type Option func(*Engine)

func WithEventHandler(h EventHandler) Option {
	return func(e *Engine) { e.handlers = append(e.handlers, h) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMeter overrides the global otel meter.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

func New(q MutationQueue, shadows ShadowRemover, net NetworkStatus, exec transport.Executor, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		queue:   q,
		shadows: shadows,
		net:     net,
		exec:    exec,
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.meter == nil {
		e.meter = otel.Meter("offsync/engine")
	}

	e.drains, _ = e.meter.Int64Counter("offsync.engine.drains",
		metric.WithDescription("Drain requests by outcome"),
		metric.WithUnit("{drain}"))
	e.mutations, _ = e.meter.Int64Counter("offsync.engine.mutations",
		metric.WithDescription("Replayed mutations by result"),
		metric.WithUnit("{mutation}"))
	e.duration, _ = e.meter.Float64Histogram("offsync.engine.drain.duration",
		metric.WithDescription("Duration of drain cycles that ran"),
		metric.WithUnit("ms"))
	_, _ = e.meter.Int64ObservableGauge("offsync.engine.draining",
		metric.WithDescription("1 while a drain is in progress"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(e.state.Load()))
			return nil
		}))

	return e
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start drains whenever the network becomes reachable, and once right away
// if it already is. Drains started this way use ctx.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.unsub != nil {
		return
	}

	e.unsub = e.net.Subscribe(func(reachable bool) {
		if reachable {
			e.goDrain(ctx, "reconnected")
		}
	})

	if e.net.Current() {
		e.wg.Go(func() { e.backgroundDrain(ctx, "started online") })
	}
}

func (e *Engine) goDrain(ctx context.Context, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.wg.Go(func() { e.backgroundDrain(ctx, reason) })
}

func (e *Engine) backgroundDrain(ctx context.Context, reason string) {
	r, err := e.TriggerDrain(ctx)
	if err != nil {
		e.log.Error(ctx, "background drain failed", "reason", reason, "error", err)
		return
	}
	if r.Skipped == "" {
		e.log.Info(ctx, "background drain finished", "reason", reason,
			"replayed", r.Replayed, "failed", r.Failed, "abandoned", r.Abandoned)
	}
}

// Close stops reacting to network changes and waits for background drains.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	unsub := e.unsub
	e.unsub = nil
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	e.wg.Wait()
}

// TriggerDrain replays the queue once. It returns a skipped Report right
// away when the server is unreachable or a drain is already running.
//
// Replay failures are reflected in the queue, the Report and the emitted
// events; the returned error only carries storage failures and the
// cancellation of ctx, which stops the cycle before the next mutation.
func (e *Engine) TriggerDrain(ctx context.Context) (*Report, error) {
	if !e.net.Current() {
		e.drains.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped_offline")))
		return &Report{Skipped: SkipOffline}, nil
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateDraining)) {
		e.drains.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped_busy")))
		return &Report{Skipped: SkipBusy}, nil
	}
	defer e.state.Store(int32(StateIdle))

	report := &Report{StartedAt: e.now()}

	pending, err := e.queue.ListPending(ctx)
	if err != nil {
		e.drains.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return report, err
	}

	var errs []error
	for _, m := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := e.replay(ctx, m, report); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	report.FinishedAt = e.now()
	if err := e.queue.MarkDrained(context.WithoutCancel(ctx), report.FinishedAt); err != nil {
		errs = append(errs, err)
	}

	e.drains.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "completed")))
	e.duration.Record(ctx, float64(report.FinishedAt.Sub(report.StartedAt).Milliseconds()))

	return report, errors.Join(errs...)
}

func (e *Engine) replay(ctx context.Context, m *models.PendingMutation, report *Report) error {
	report.Attempted++

	resp, err := e.exec.Execute(ctx, transport.Request{
		Target:  m.Target,
		Method:  m.Method,
		Headers: m.Headers,
		Body:    m.Body,
	})
	if err == nil && resp.OK() {
		return e.succeeded(ctx, m, resp, report)
	}

	if err != nil && ctx.Err() != nil {
		// cancelled in flight: not a failed replay
		report.Attempted--
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	report.Failed++
	e.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))

	count, evicted, ierr := e.queue.IncrementRetry(ctx, m.ID)
	if ierr != nil {
		if errors.Is(ierr, common.ErrNotFound) {
			return nil
		}
		return ierr
	}

	at := e.now()
	status := 0
	if resp != nil {
		status = resp.Status
	}

	if evicted {
		report.Abandoned++
		e.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "abandoned")))
		e.log.Error(ctx, "mutation abandoned",
			"id", m.ID, "table", m.Table, "operation", m.Operation, "target", m.Target,
			"retries", count, "status", status, "error", err)
		e.emit(ctx, Event{Kind: MutationAbandoned, Mutation: m, Response: resp, RetryCount: count, Err: err, At: at})
		return nil
	}

	e.log.Warn(ctx, "mutation replay failed",
		"id", m.ID, "table", m.Table, "retries", count, "status", status, "error", err)
	e.emit(ctx, Event{Kind: MutationRetryScheduled, Mutation: m, Response: resp, RetryCount: count, Err: err, At: at})
	return nil
}

func (e *Engine) succeeded(ctx context.Context, m *models.PendingMutation, resp *transport.Response, report *Report) error {
	// the server has applied the write; finish the bookkeeping even if ctx ends now
	ctx = context.WithoutCancel(ctx)

	if err := e.queue.Remove(ctx, m.ID); err != nil {
		return err
	}
	report.Replayed++
	report.addTable(m.Table)
	e.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "replayed")))

	var err error
	if m.LocalID != "" {
		if err = e.shadows.Remove(ctx, m.LocalID); err == nil {
			report.Reconciled++
		} else {
			e.log.Error(ctx, "failed to reconcile shadow record", "id", m.ID, "local_id", m.LocalID, "error", err)
		}
	}

	e.log.Debug(ctx, "mutation replayed", "id", m.ID, "table", m.Table, "status", resp.Status)
	e.emit(ctx, Event{Kind: MutationReplayed, Mutation: m, Response: resp, RetryCount: m.RetryCount, At: e.now()})
	return err
}
