// Package event defines the payment event journal: immutable facts recorded
// whenever a stream or schedule changes or pays out.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the type of a payment event.
type Type string

// Stream lifecycle events.
const (
	// TypeStreamOpened records the opening of a continuous payment stream.
	TypeStreamOpened Type = "stream.opened"
	// TypeStreamUpdated records a stream rate edit.
	TypeStreamUpdated Type = "stream.updated"
	// TypeStreamClosed records a stream cancellation.
	TypeStreamClosed Type = "stream.closed"
	// TypeStreamPayout records a withdrawal of accrued stream funds.
	TypeStreamPayout Type = "stream.payout"
	// TypeStreamMigrated records a stream rebinding to a new controlling address.
	TypeStreamMigrated Type = "stream.migrated"
)

// Schedule lifecycle events.
const (
	// TypeScheduleOpened records the creation of a payment schedule.
	TypeScheduleOpened Type = "schedule.opened"
	// TypeScheduleUpdated records a schedule amount edit.
	TypeScheduleUpdated Type = "schedule.updated"
	// TypeScheduleClosed records a schedule cancellation or one-time exhaustion.
	TypeScheduleClosed Type = "schedule.closed"
	// TypeSchedulePayout records a due-period payout, possibly covering
	// several missed periods at once.
	TypeSchedulePayout Type = "schedule.payout"
)

// Event is one immutable entry in the payment event journal.
// Every event carries at least the handle and asset it concerns.
type Event struct {
	// ID is a URL-safe identifier assigned on emit.
	ID string
	// Handle is the payee handle the event concerns.
	Handle string
	// Asset is the settlement asset code.
	Asset string
	// Type identifies what happened.
	Type Type
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// PayloadJSON carries event-specific fields as a JSON object.
	PayloadJSON string
}

// New builds an event for a handle and asset with an encoded payload.
// ID and Timestamp are assigned when the event is emitted.
func New(handle, asset string, eventType Type, payload map[string]string) (Event, error) {
	encoded := "{}"
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode event payload: %w", err)
		}
		encoded = string(raw)
	}
	return Event{
		Handle:      handle,
		Asset:       asset,
		Type:        eventType,
		PayloadJSON: encoded,
	}, nil
}

// Payload decodes the event payload.
func (e Event) Payload() (map[string]string, error) {
	if e.PayloadJSON == "" {
		return map[string]string{}, nil
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(e.PayloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return payload, nil
}
