package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/treasury/rate"
	"github.com/shopspring/decimal"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestOpenStreamNormalizesRateOnce(t *testing.T) {
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := OpenStreamInput{
		Handle:      "  alice ",
		Asset:       Asset{Code: " USDC ", Decimals: 6},
		TotalAmount: decimal.NewFromInt(1000000000),
		EndTime:     openedAt.Add(30 * 24 * time.Hour),
		Payee:       "0xaaa",
	}

	stream, err := OpenStream(input, fixedClock(openedAt), 96)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	if stream.Handle != "alice" {
		t.Fatalf("handle = %q, want alice", stream.Handle)
	}
	if stream.Asset.Code != "usdc" {
		t.Fatalf("asset code = %q, want usdc", stream.Asset.Code)
	}
	want := decimal.RequireFromString("38580246913580246")
	if !stream.RatePerSecond.Equal(want) {
		t.Fatalf("rate = %s, want %s", stream.RatePerSecond, want)
	}
	if !stream.Active {
		t.Fatal("new stream is not active")
	}
	if stream.BoundAddress != "0xaaa" {
		t.Fatalf("bound address = %q, want 0xaaa", stream.BoundAddress)
	}
	if !stream.CreatedAt.Equal(openedAt) || !stream.UpdatedAt.Equal(openedAt) {
		t.Fatal("timestamps do not match the open time")
	}
}

func TestOpenStreamValidation(t *testing.T) {
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := OpenStreamInput{
		Handle:      "alice",
		Asset:       Asset{Code: "usdc", Decimals: 6},
		TotalAmount: decimal.NewFromInt(1000),
		EndTime:     openedAt.Add(time.Hour),
		Payee:       "0xaaa",
	}

	tests := []struct {
		name   string
		mutate func(*OpenStreamInput)
		err    error
	}{
		{
			name:   "malformed handle",
			mutate: func(in *OpenStreamInput) { in.Handle = "9lives" },
			err:    identity.ErrInvalidHandle,
		},
		{
			name:   "zero amount",
			mutate: func(in *OpenStreamInput) { in.TotalAmount = decimal.Zero },
			err:    ErrInvalidAmount,
		},
		{
			name:   "end time in the past",
			mutate: func(in *OpenStreamInput) { in.EndTime = openedAt.Add(-time.Minute) },
			err:    ErrPastEndTime,
		},
		{
			name:   "end time equals now",
			mutate: func(in *OpenStreamInput) { in.EndTime = openedAt },
			err:    ErrPastEndTime,
		},
		{
			name:   "missing payee",
			mutate: func(in *OpenStreamInput) { in.Payee = "  " },
			err:    ErrEmptyPayee,
		},
		{
			name:   "empty asset",
			mutate: func(in *OpenStreamInput) { in.Asset = Asset{} },
			err:    ErrInvalidAsset,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			if _, err := OpenStream(input, fixedClock(openedAt), 96); !errors.Is(err, tc.err) {
				t.Fatalf("open stream error = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestOpenStreamPropagatesRateOverflow(t *testing.T) {
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := OpenStreamInput{
		Handle:      "alice",
		Asset:       Asset{Code: "usdc", Decimals: 0},
		TotalAmount: decimal.RequireFromString("1000000000000000000000000000000"),
		EndTime:     openedAt.Add(time.Second),
		Payee:       "0xaaa",
	}
	if _, err := OpenStream(input, fixedClock(openedAt), 64); !errors.Is(err, rate.ErrOverflow) {
		t.Fatalf("open stream error = %v, want %v", err, rate.ErrOverflow)
	}
}

func TestStreamTransitions(t *testing.T) {
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stream, err := OpenStream(OpenStreamInput{
		Handle:      "alice",
		Asset:       Asset{Code: "usdc", Decimals: 6},
		TotalAmount: decimal.NewFromInt(1000000000),
		EndTime:     openedAt.Add(30 * 24 * time.Hour),
		Payee:       "0xaaa",
	}, fixedClock(openedAt), 96)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	later := openedAt.Add(time.Hour)
	rebound := stream.Rebound("0xbbb", later)
	if rebound.BoundAddress != "0xbbb" {
		t.Fatalf("bound address = %q, want 0xbbb", rebound.BoundAddress)
	}
	if !rebound.RatePerSecond.Equal(stream.RatePerSecond) {
		t.Fatal("rebinding changed the rate")
	}

	newEnd := openedAt.Add(60 * 24 * time.Hour)
	updated := stream.WithRate(decimal.NewFromInt(42), newEnd, later)
	if !updated.RatePerSecond.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("rate = %s, want 42", updated.RatePerSecond)
	}
	if !updated.EndTime.Equal(newEnd) {
		t.Fatalf("end time = %v, want %v", updated.EndTime, newEnd)
	}

	paid := stream.WithPayout(later)
	if !paid.LastPayout.Equal(later) {
		t.Fatalf("last payout = %v, want %v", paid.LastPayout, later)
	}

	closed := stream.Closed(later)
	if closed.Active {
		t.Fatal("closed stream is still active")
	}
	if closed.BoundAddress != "" {
		t.Fatalf("closed stream keeps bound address %q", closed.BoundAddress)
	}
}

func TestRemainingDurationNeverNegative(t *testing.T) {
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stream := Stream{EndTime: openedAt.Add(time.Hour)}

	if got := stream.RemainingDuration(openedAt); got != time.Hour {
		t.Fatalf("remaining = %v, want 1h", got)
	}
	if got := stream.RemainingDuration(openedAt.Add(2 * time.Hour)); got != 0 {
		t.Fatalf("remaining = %v, want 0", got)
	}
}
