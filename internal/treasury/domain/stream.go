package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/treasury/rate"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a zero or negative payment amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrPastEndTime indicates a stream end time that is not in the future.
	ErrPastEndTime = errors.New("end time must be in the future")
	// ErrEmptyPayee indicates a missing payee address.
	ErrEmptyPayee = errors.New("payee address is required")
)

// Stream is a continuous per-second payment flow bound to a handle.
type Stream struct {
	Handle string
	Asset  Asset
	// RatePerSecond is the normalized per-second rate at reference precision.
	// Computed once at open or edit, never re-derived.
	RatePerSecond decimal.Decimal
	EndTime       time.Time
	Active        bool
	// BoundAddress is the payee address the settlement flow is registered
	// under. It may lag the handle's current resolved address; migration
	// realigns it. Empty exactly when the stream is inactive.
	BoundAddress string
	LastPayout   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OpenStreamInput describes a stream to be opened.
type OpenStreamInput struct {
	Handle      string
	Asset       Asset
	TotalAmount decimal.Decimal
	EndTime     time.Time
	// Payee is the address the handle currently resolves to.
	Payee string
}

// OpenStream validates input and creates an active stream whose rate pays
// TotalAmount out evenly between now and EndTime. maxRateBits bounds the
// rate width the settlement ledger accepts.
func OpenStream(input OpenStreamInput, now func() time.Time, maxRateBits int) (Stream, error) {
	if now == nil {
		now = time.Now
	}

	handle, err := identity.NormalizeHandle(input.Handle)
	if err != nil {
		return Stream{}, err
	}
	asset, err := NormalizeAsset(input.Asset)
	if err != nil {
		return Stream{}, err
	}
	if input.TotalAmount.Sign() <= 0 {
		return Stream{}, ErrInvalidAmount
	}
	payee := strings.TrimSpace(input.Payee)
	if payee == "" {
		return Stream{}, ErrEmptyPayee
	}

	openedAt := now().UTC()
	if !input.EndTime.After(openedAt) {
		return Stream{}, ErrPastEndTime
	}

	perSecond, err := rate.Normalize(input.TotalAmount, input.EndTime.Sub(openedAt), asset.Decimals, maxRateBits)
	if err != nil {
		return Stream{}, err
	}

	return Stream{
		Handle:        handle,
		Asset:         asset,
		RatePerSecond: perSecond,
		EndTime:       input.EndTime.UTC(),
		Active:        true,
		BoundAddress:  payee,
		CreatedAt:     openedAt,
		UpdatedAt:     openedAt,
	}, nil
}

// WithRate returns the stream carrying a new per-second rate and end time.
// The bound address is unchanged.
func (s Stream) WithRate(perSecond decimal.Decimal, endTime, at time.Time) Stream {
	s.RatePerSecond = perSecond
	s.EndTime = endTime.UTC()
	s.UpdatedAt = at.UTC()
	return s
}

// Rebound returns the stream with its settlement flow bound to a new payee
// address. The rate is unchanged.
func (s Stream) Rebound(address string, at time.Time) Stream {
	s.BoundAddress = address
	s.UpdatedAt = at.UTC()
	return s
}

// WithPayout returns the stream with its last payout time advanced.
func (s Stream) WithPayout(at time.Time) Stream {
	s.LastPayout = at.UTC()
	s.UpdatedAt = at.UTC()
	return s
}

// Closed returns the stream deactivated. Closing is terminal: a stream never
// reactivates, and an inactive stream holds no bound address.
func (s Stream) Closed(at time.Time) Stream {
	s.Active = false
	s.BoundAddress = ""
	s.UpdatedAt = at.UTC()
	return s
}

// RemainingDuration returns the time left until the stream's end, never negative.
func (s Stream) RemainingDuration(now time.Time) time.Duration {
	remaining := s.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
