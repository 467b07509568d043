package runtime

import (
	"context"
	"log/slog"

	"parley/contract"
	"parley/protocol"
)

// Router fans protocol events out to the right subset of live
// connections: one room's occupants, or everyone. Delivery is
// best-effort per sink; a failing sink is logged, never retried, and
// never blocks the others.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewRouter(log *slog.Logger, registry contract.IRegistry) *Router {
	return &Router{log: log, registry: registry}
}

// ToRoom delivers an event to every connection in the room at the
// instant of the call.
func (r *Router) ToRoom(ctx context.Context, roomID, eventType string, payload any) {
	event, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		r.log.Error("encoding broadcast", "type", eventType, "error", err)
		return
	}
	r.deliver(ctx, r.registry.SinksForRoom(roomID), event)
}

// ToAll delivers an event to every live connection.
func (r *Router) ToAll(ctx context.Context, eventType string, payload any) {
	event, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		r.log.Error("encoding broadcast", "type", eventType, "error", err)
		return
	}
	r.deliver(ctx, r.registry.AllSinks(), event)
}

func (r *Router) deliver(ctx context.Context, sinks []contract.EventSink, event protocol.Event) {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, event); err != nil {
			r.log.Debug("sink dropped event", "type", event.Type, "error", err)
		}
	}
}
