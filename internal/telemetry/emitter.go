// Package telemetry records payment events in the journal and mirrors them
// onto the active trace span.
package telemetry

import (
	"context"
	"time"

	"github.com/finialabs/outlay/internal/id"
	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Emitter records payment events.
type Emitter struct {
	events storage.EventStore
	clock  func() time.Time
	newID  func() (string, error)
}

// NewEmitter creates an event emitter backed by the given journal store.
func NewEmitter(events storage.EventStore) *Emitter {
	return &Emitter{events: events, clock: time.Now, newID: id.NewID}
}

// WithClock returns the emitter using the given clock.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// Emit assigns the event an id and timestamp, appends it to the journal, and
// mirrors it onto the span in ctx. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt event.Event) error {
	if e == nil || e.events == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.ID == "" {
		eventID, err := e.newID()
		if err != nil {
			return err
		}
		evt.ID = eventID
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent(string(evt.Type), trace.WithAttributes(
		attribute.String("payment.handle", evt.Handle),
		attribute.String("payment.asset", evt.Asset),
	))

	return e.events.AppendEvent(ctx, evt)
}
