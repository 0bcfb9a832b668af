// Package storage defines the persistence interfaces of the payment core.
//
// Streams and schedules are keyed by handle; the event journal is
// append-only. The sqlite subpackage provides the durable implementation.
package storage

import (
	"context"
	"errors"

	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/finialabs/outlay/internal/treasury/filter"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// StreamStore persists continuous payment streams, one per handle.
type StreamStore interface {
	PutStream(ctx context.Context, stream domain.Stream) error
	// GetStream returns the stream for handle, active or not.
	// Returns ErrNotFound when no stream was ever created for handle.
	GetStream(ctx context.Context, handle string) (domain.Stream, error)
}

// ScheduleStore persists discrete payment schedules, one per handle.
type ScheduleStore interface {
	PutSchedule(ctx context.Context, schedule domain.Schedule) error
	// GetSchedule returns the schedule for handle, active or not.
	// Returns ErrNotFound when no schedule was ever created for handle.
	GetSchedule(ctx context.Context, handle string) (domain.Schedule, error)
}

// EventStore persists the append-only payment event journal.
type EventStore interface {
	AppendEvent(ctx context.Context, evt event.Event) error
	// ListEvents returns newest-first events matching condition,
	// at most limit of them.
	ListEvents(ctx context.Context, condition filter.SQLCondition, limit int) ([]event.Event, error)
}

// Store combines every persistence interface of the payment core.
type Store interface {
	StreamStore
	ScheduleStore
	EventStore
}
