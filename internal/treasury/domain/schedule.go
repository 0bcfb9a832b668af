package domain

import (
	"errors"
	"time"

	"github.com/finialabs/outlay/internal/identity"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInterval indicates a recurring schedule without a valid interval.
	ErrInvalidInterval = errors.New("interval is invalid")
	// ErrPastFirstPayment indicates a first payment time that is not in the future.
	ErrPastFirstPayment = errors.New("first payment time must be in the future")
)

// Interval is a fixed-length payment period.
//
// Interval lengths are calendar-naive constants: a month is always 30 days,
// a year always 365. This is a documented approximation, not a defect.
type Interval int

const (
	// IntervalUnspecified is only valid on one-time schedules.
	IntervalUnspecified Interval = iota
	// IntervalWeekly pays every 7 days.
	IntervalWeekly
	// IntervalMonthly pays every 30 days.
	IntervalMonthly
	// IntervalQuarterly pays every 90 days.
	IntervalQuarterly
	// IntervalYearly pays every 365 days.
	IntervalYearly
)

// Duration returns the fixed length of the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	case IntervalMonthly:
		return 30 * 24 * time.Hour
	case IntervalQuarterly:
		return 90 * 24 * time.Hour
	case IntervalYearly:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// String returns the storage representation of the interval.
func (i Interval) String() string {
	switch i {
	case IntervalWeekly:
		return "weekly"
	case IntervalMonthly:
		return "monthly"
	case IntervalQuarterly:
		return "quarterly"
	case IntervalYearly:
		return "yearly"
	default:
		return "unspecified"
	}
}

// ParseInterval maps a storage representation back to an Interval.
func ParseInterval(value string) Interval {
	switch value {
	case "weekly":
		return IntervalWeekly
	case "monthly":
		return IntervalMonthly
	case "quarterly":
		return IntervalQuarterly
	case "yearly":
		return IntervalYearly
	default:
		return IntervalUnspecified
	}
}

// Schedule is a discrete payment bound to a handle: either recurring on a
// fixed interval or a single one-time payment. Schedules are unfunded until
// due; no money moves at creation.
type Schedule struct {
	Handle          string
	Asset           Asset
	AmountPerPeriod decimal.Decimal
	Interval        Interval
	OneTime         bool
	Active          bool
	FirstPayment    time.Time
	// NextPayment is always FirstPayment plus a whole number of intervals.
	NextPayment time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OpenScheduleInput describes a schedule to be created.
type OpenScheduleInput struct {
	Handle          string
	Asset           Asset
	AmountPerPeriod decimal.Decimal
	Interval        Interval
	OneTime         bool
	FirstPayment    time.Time
}

// OpenSchedule validates input and creates an active schedule with its next
// payment set to the first payment time.
func OpenSchedule(input OpenScheduleInput, now func() time.Time) (Schedule, error) {
	if now == nil {
		now = time.Now
	}

	handle, err := identity.NormalizeHandle(input.Handle)
	if err != nil {
		return Schedule{}, err
	}
	asset, err := NormalizeAsset(input.Asset)
	if err != nil {
		return Schedule{}, err
	}
	if input.AmountPerPeriod.Sign() <= 0 {
		return Schedule{}, ErrInvalidAmount
	}
	if !input.OneTime && input.Interval.Duration() <= 0 {
		return Schedule{}, ErrInvalidInterval
	}

	createdAt := now().UTC()
	if !input.FirstPayment.After(createdAt) {
		return Schedule{}, ErrPastFirstPayment
	}

	return Schedule{
		Handle:          handle,
		Asset:           asset,
		AmountPerPeriod: input.AmountPerPeriod,
		Interval:        input.Interval,
		OneTime:         input.OneTime,
		Active:          true,
		FirstPayment:    input.FirstPayment.UTC(),
		NextPayment:     input.FirstPayment.UTC(),
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}

// PeriodsDue returns how many periods a payout at now would cover.
// Zero means the next payment is not due yet. Missed periods accumulate:
// a recurring schedule claimed late pays every elapsed period in one lump.
func (s Schedule) PeriodsDue(now time.Time) int64 {
	if !s.Active || now.Before(s.NextPayment) {
		return 0
	}
	if s.OneTime {
		return 1
	}
	elapsed := now.Sub(s.NextPayment)
	return 1 + int64(elapsed/s.Interval.Duration())
}

// AfterPayout returns the schedule advanced past a payout covering the given
// number of periods. One-time schedules deactivate; recurring schedules move
// the next payment forward by exactly periods whole intervals.
func (s Schedule) AfterPayout(periods int64, at time.Time) Schedule {
	if s.OneTime {
		s.Active = false
	} else {
		s.NextPayment = s.NextPayment.Add(time.Duration(periods) * s.Interval.Duration())
	}
	s.UpdatedAt = at.UTC()
	return s
}

// WithAmount returns the schedule carrying a new per-period amount.
func (s Schedule) WithAmount(amount decimal.Decimal, at time.Time) (Schedule, error) {
	if amount.Sign() <= 0 {
		return Schedule{}, ErrInvalidAmount
	}
	s.AmountPerPeriod = amount
	s.UpdatedAt = at.UTC()
	return s, nil
}

// Closed returns the schedule deactivated.
func (s Schedule) Closed(at time.Time) Schedule {
	s.Active = false
	s.UpdatedAt = at.UTC()
	return s
}
