package application

import (
	"context"

	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

const eventBuffer = 16

// EventRouter maps the provider's auth-state feed onto cache actions. Only a
// confirmed sign-out ever clears authorization state; every other event,
// including unrecognized ones, is additive or a no-op.
//
// Events are queued and dispatched off the provider callback: the provider's
// own bookkeeping for an event may not be complete when the callback fires,
// and re-entering it synchronously can read stale state.
type EventRouter struct {
	sequencer *Sequencer
	cache     *PermissionCache
	queries   *QueryCache
	ephemeral ports.EphemeralStore
	logger    ports.Logger

	events chan domain.AuthEvent
}

func NewEventRouter(sequencer *Sequencer, cache *PermissionCache, queries *QueryCache, ephemeral ports.EphemeralStore, logger ports.Logger) *EventRouter {
	return &EventRouter{
		sequencer: sequencer,
		cache:     cache,
		queries:   queries,
		ephemeral: ephemeral,
		logger:    logger,
		events:    make(chan domain.AuthEvent, eventBuffer),
	}
}

// Attach subscribes the router to a provider's feed.
func (r *EventRouter) Attach(provider ports.AuthProvider) (unsubscribe func()) {
	return provider.Subscribe(r.Handle)
}

// Handle enqueues an event for deferred dispatch. Safe to call from inside
// the provider callback. If the queue is full the event is dropped with a
// warning; a dropped refresh is recoverable, and sign-in/sign-out re-emit on
// the next state change.
func (r *EventRouter) Handle(ev domain.AuthEvent) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn(context.Background(), "auth event queue full, dropping", "event", ev.Raw)
	}
}

// Run consumes the queue in order until ctx is done.
func (r *EventRouter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.Dispatch(ctx, ev)
		}
	}
}

// Dispatch applies a single event's actions synchronously.
func (r *EventRouter) Dispatch(ctx context.Context, ev domain.AuthEvent) {
	switch ev.Kind {
	case domain.EventSignedIn:
		res := r.sequencer.Bootstrap(ctx)
		if res.OK {
			r.cache.SaveIfValid(ctx, res.Permissions)
		} else {
			r.logger.Warn(ctx, "bootstrap after sign-in failed", "reason", res.Reason)
		}
		r.queries.Invalidate(QuerySession, QueryCurrentUser, QueryRole, QueryClientID, QueryProjects)

	case domain.EventSignedOut:
		r.cache.Clear(ctx)
		r.queries.InvalidateAll()
		if err := r.ephemeral.ClearClientState(ctx); err != nil {
			r.logger.Warn(ctx, "clearing client state failed", "error", err)
		}

	case domain.EventTokenRefreshed:
		r.queries.Invalidate(QuerySession)

	case domain.EventUserUpdated:
		r.queries.Invalidate(QueryCurrentUser, QueryRole)

	default:
		// Unknown provider events are transient emissions, never a sign-out.
		r.logger.Debug(ctx, "ignoring auth event", "event", ev.Raw)
	}
}
