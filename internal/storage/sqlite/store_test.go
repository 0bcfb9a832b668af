package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/finialabs/outlay/internal/treasury/filter"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "outlay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("open with empty path succeeded")
	}
}

func TestStreamRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stream := domain.Stream{
		Handle:        "alice",
		Asset:         domain.Asset{Code: "usdc", Decimals: 6},
		RatePerSecond: decimal.RequireFromString("38580246913580246"),
		EndTime:       openedAt.Add(30 * 24 * time.Hour),
		Active:        true,
		BoundAddress:  "0xaaa",
		CreatedAt:     openedAt,
		UpdatedAt:     openedAt,
	}
	if err := store.PutStream(ctx, stream); err != nil {
		t.Fatalf("put stream: %v", err)
	}

	got, err := store.GetStream(ctx, "alice")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	if !got.RatePerSecond.Equal(stream.RatePerSecond) {
		t.Fatalf("rate = %s, want %s", got.RatePerSecond, stream.RatePerSecond)
	}
	if !got.EndTime.Equal(stream.EndTime) {
		t.Fatalf("end time = %v, want %v", got.EndTime, stream.EndTime)
	}
	if !got.Active || got.BoundAddress != "0xaaa" {
		t.Fatalf("stream = %+v, want active and bound to 0xaaa", got)
	}
	if !got.LastPayout.IsZero() {
		t.Fatalf("last payout = %v, want zero", got.LastPayout)
	}
}

func TestPutStreamUpsertsByHandle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stream := domain.Stream{
		Handle:        "alice",
		Asset:         domain.Asset{Code: "usdc", Decimals: 6},
		RatePerSecond: decimal.NewFromInt(10),
		EndTime:       openedAt.Add(time.Hour),
		Active:        true,
		BoundAddress:  "0xaaa",
		CreatedAt:     openedAt,
		UpdatedAt:     openedAt,
	}
	if err := store.PutStream(ctx, stream); err != nil {
		t.Fatalf("put stream: %v", err)
	}

	closed := stream.Closed(openedAt.Add(time.Minute))
	if err := store.PutStream(ctx, closed); err != nil {
		t.Fatalf("put closed stream: %v", err)
	}

	got, err := store.GetStream(ctx, "alice")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	if got.Active {
		t.Fatal("stream still active after closing upsert")
	}
	if got.BoundAddress != "" {
		t.Fatalf("bound address = %q, want empty", got.BoundAddress)
	}
}

func TestGetStreamNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetStream(context.Background(), "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := createdAt.Add(7 * 24 * time.Hour)

	schedule := domain.Schedule{
		Handle:          "bob",
		Asset:           domain.Asset{Code: "usdc", Decimals: 6},
		AmountPerPeriod: decimal.RequireFromString("500000000"),
		Interval:        domain.IntervalWeekly,
		Active:          true,
		FirstPayment:    first,
		NextPayment:     first,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := store.PutSchedule(ctx, schedule); err != nil {
		t.Fatalf("put schedule: %v", err)
	}

	got, err := store.GetSchedule(ctx, "bob")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if !got.AmountPerPeriod.Equal(schedule.AmountPerPeriod) {
		t.Fatalf("amount = %s, want %s", got.AmountPerPeriod, schedule.AmountPerPeriod)
	}
	if got.Interval != domain.IntervalWeekly {
		t.Fatalf("interval = %v, want weekly", got.Interval)
	}
	if got.OneTime {
		t.Fatal("schedule marked one-time")
	}
	if !got.NextPayment.Equal(first) {
		t.Fatalf("next payment = %v, want %v", got.NextPayment, first)
	}

	if _, err := store.GetSchedule(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []event.Event{
		{ID: "evt1", Handle: "alice", Asset: "usdc", Type: event.TypeStreamOpened, Timestamp: base, PayloadJSON: `{"rate":"1"}`},
		{ID: "evt2", Handle: "alice", Asset: "usdc", Type: event.TypeStreamPayout, Timestamp: base.Add(time.Hour), PayloadJSON: `{"amount":"5"}`},
		{ID: "evt3", Handle: "bob", Asset: "usdc", Type: event.TypeScheduleOpened, Timestamp: base.Add(2 * time.Hour), PayloadJSON: "{}"},
	}
	for _, evt := range entries {
		if err := store.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append %s: %v", evt.ID, err)
		}
	}

	events, err := store.ListEvents(ctx, filter.SQLCondition{}, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].ID != "evt3" || events[2].ID != "evt1" {
		t.Fatalf("events not newest first: %s, %s, %s", events[0].ID, events[1].ID, events[2].ID)
	}

	condition, err := filter.ParseEventFilter(`handle = "alice" AND type = "stream.payout"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	events, err = store.ListEvents(ctx, condition, 10)
	if err != nil {
		t.Fatalf("list filtered events: %v", err)
	}
	if len(events) != 1 || events[0].ID != "evt2" {
		t.Fatalf("filtered events = %v, want only evt2", events)
	}

	events, err = store.ListEvents(ctx, filter.SQLCondition{}, 2)
	if err != nil {
		t.Fatalf("list limited events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestAppendEventValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.AppendEvent(ctx, event.Event{Handle: "alice", Type: event.TypeStreamOpened, Timestamp: at}); err == nil {
		t.Fatal("append without id succeeded")
	}
	if err := store.AppendEvent(ctx, event.Event{ID: "evt1", Type: event.TypeStreamOpened, Timestamp: at}); err == nil {
		t.Fatal("append without handle succeeded")
	}
	if err := store.AppendEvent(ctx, event.Event{ID: "evt1", Handle: "alice", Type: event.TypeStreamOpened}); err == nil {
		t.Fatal("append without timestamp succeeded")
	}
}
