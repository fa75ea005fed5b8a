package consumer

import (
	"context"

	"camphub/event-relay/event"
)

// Handler processes one decoded event. Implementations must be idempotent,
// the broker delivers at least once and a retried delivery will reach the
// same handler again.
type Handler interface {
	Handle(ctx context.Context, e event.Envelope) error
}

type HandlerFunc func(ctx context.Context, e event.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, e event.Envelope) error {
	return f(ctx, e)
}

// Registry routes events to handlers by event type. Events with no
// registered handler are acknowledged and dropped.
type Registry map[string]Handler

func (r Registry) Register(eventType string, h Handler) {
	r[eventType] = h
}

func (r Registry) handlerFor(eventType string) (Handler, bool) {
	h, ok := r[eventType]
	return h, ok
}
