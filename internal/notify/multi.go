package notify

import (
	"context"

	"github.com/spacebook/reservation-core/internal/model"
)

// Sink is anything that accepts events.
type Sink interface {
	Publish(ctx context.Context, ev model.Event)
}

// Multi publishes every event to each of its sinks in order.  Nil sinks
// are skipped so optional transports can be passed unconditionally.
type Multi []Sink

func NewMulti(sinks ...Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) Publish(ctx context.Context, ev model.Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}
