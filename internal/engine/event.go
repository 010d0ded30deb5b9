package engine

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/transport"
)

type EventKind string

const (
	MutationReplayed       EventKind = "mutation_replayed"
	MutationRetryScheduled EventKind = "mutation_retry_scheduled"
	// MutationAbandoned is emitted once, when a mutation is evicted after
	// exceeding the retry ceiling. It is always logged at error level.
	MutationAbandoned EventKind = "mutation_abandoned"
)

type Event struct {
	Kind     EventKind
	Mutation *models.PendingMutation
	// Response is nil when the request never got an answer.
	Response   *transport.Response
	RetryCount int
	Err        error
	At         time.Time
}

type EventHandler func(Event)

func (e *Engine) emit(ctx context.Context, ev Event) {
	for _, h := range e.handlers {
		var pc panics.Catcher
		pc.Try(func() { h(ev) })
		if r := pc.Recovered(); r != nil {
			e.log.Error(ctx, "event handler panicked", "event", ev.Kind, "panic", r.Value)
		}
	}
}
