package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/finialabs/outlay/internal/treasury/filter"
)

// AppendEvent implements storage.EventStore.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	evt.ID = strings.TrimSpace(evt.ID)
	if evt.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if evt.Handle == "" {
		return fmt.Errorf("event handle is required")
	}
	if evt.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if evt.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	if evt.PayloadJSON == "" {
		evt.PayloadJSON = "{}"
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO events (id, handle, asset, event_type, timestamp, payload_json)
VALUES (?, ?, ?, ?, ?, ?)
`,
		evt.ID,
		evt.Handle,
		evt.Asset,
		string(evt.Type),
		evt.Timestamp.UTC().UnixMilli(),
		evt.PayloadJSON,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents implements storage.EventStore. Events come back newest first.
func (s *Store) ListEvents(ctx context.Context, condition filter.SQLCondition, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	query := `
SELECT id, handle, asset, event_type, timestamp, payload_json
FROM events
`
	params := []any{}
	if strings.TrimSpace(condition.Clause) != "" {
		query += "WHERE " + condition.Clause + "\n"
		params = append(params, condition.Params...)
	}
	query += "ORDER BY timestamp DESC, id DESC\nLIMIT ?"
	params = append(params, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			eventType string
			timestamp int64
		)
		if err := rows.Scan(&evt.ID, &evt.Handle, &evt.Asset, &eventType, &timestamp, &evt.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.Timestamp = msToTime(timestamp)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

var _ storage.Store = (*Store)(nil)
