package rate

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeScalesToReferencePrecision(t *testing.T) {
	// 1000.000000 of a 6-decimal asset over 30 days.
	amount := decimal.RequireFromString("1000000000")
	perSecond, err := Normalize(amount, 30*24*time.Hour, 6, 96)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	// 1000000000 × 10^14 / 2592000, truncated.
	want := decimal.RequireFromString("38580246913580246")
	if !perSecond.Equal(want) {
		t.Fatalf("rate = %s, want %s", perSecond, want)
	}
}

func TestNormalizeRoundTripWithinOneNativeUnit(t *testing.T) {
	amount := decimal.RequireFromString("1000000000")
	duration := 30 * 24 * time.Hour
	perSecond, err := Normalize(amount, duration, 6, 96)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	back := Accrue(perSecond, int64(duration/time.Second), 6)
	diff := amount.Sub(back)
	if diff.Sign() < 0 || diff.GreaterThan(decimal.NewFromInt(1)) {
		t.Fatalf("round trip drift = %s, want within one native unit below %s", diff, amount)
	}
}

func TestNormalizeValidation(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		duration time.Duration
		decimals int32
		err      error
	}{
		{
			name:     "zero amount",
			amount:   decimal.Zero,
			duration: time.Hour,
			decimals: 6,
			err:      ErrNonPositiveAmount,
		},
		{
			name:     "negative amount",
			amount:   decimal.NewFromInt(-5),
			duration: time.Hour,
			decimals: 6,
			err:      ErrNonPositiveAmount,
		},
		{
			name:     "sub-second duration",
			amount:   decimal.NewFromInt(100),
			duration: 500 * time.Millisecond,
			decimals: 6,
			err:      ErrInvalidDuration,
		},
		{
			name:     "decimals at reference precision",
			amount:   decimal.NewFromInt(100),
			duration: time.Hour,
			decimals: Precision,
			err:      ErrInvalidPrecision,
		},
		{
			name:     "negative decimals",
			amount:   decimal.NewFromInt(100),
			duration: time.Hour,
			decimals: -1,
			err:      ErrInvalidPrecision,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Normalize(tc.amount, tc.duration, tc.decimals, 96); !errors.Is(err, tc.err) {
				t.Fatalf("normalize error = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestNormalizeRejectsOverwideRate(t *testing.T) {
	// A huge amount over one second overflows a narrow rate width.
	amount := decimal.RequireFromString("1000000000000000000000000000000")
	if _, err := Normalize(amount, time.Second, 0, 64); !errors.Is(err, ErrOverflow) {
		t.Fatalf("normalize error = %v, want %v", err, ErrOverflow)
	}
}

func TestNormalizeRejectsRateTruncatedToZero(t *testing.T) {
	// One native unit of a 19-decimal asset spread over far more seconds
	// than the single remaining scale digit can express.
	if _, err := Normalize(decimal.NewFromInt(1), 20*time.Second, 19, 96); !errors.Is(err, ErrZeroRate) {
		t.Fatalf("normalize error = %v, want %v", err, ErrZeroRate)
	}
}

func TestDenormalizeTruncatesTowardZero(t *testing.T) {
	normalized := decimal.RequireFromString("38580246913580246913")
	got := Denormalize(normalized, 6)
	want := decimal.RequireFromString("385802")
	if !got.Equal(want) {
		t.Fatalf("denormalized = %s, want %s", got, want)
	}
}

func TestAccrueZeroForNonPositiveSeconds(t *testing.T) {
	rate := decimal.RequireFromString("38580246913580246913")
	if got := Accrue(rate, 0, 6); !got.IsZero() {
		t.Fatalf("accrued = %s, want 0", got)
	}
	if got := Accrue(rate, -10, 6); !got.IsZero() {
		t.Fatalf("accrued = %s, want 0", got)
	}
}
