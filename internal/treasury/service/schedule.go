package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	apperrors "github.com/finialabs/outlay/internal/errors"
	"github.com/finialabs/outlay/internal/executor"
	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/shopspring/decimal"
)

// CreateScheduleInput describes a discrete payment schedule to create.
type CreateScheduleInput struct {
	Caller          string
	Handle          string
	Asset           domain.Asset
	AmountPerPeriod decimal.Decimal
	// Interval is required unless OneTime is set.
	Interval     domain.Interval
	OneTime      bool
	FirstPayment time.Time
}

// CreateSchedule creates a schedule for a handle. Schedules are unfunded
// until claimed; no money moves here. One active schedule per handle.
func (s *Service) CreateSchedule(ctx context.Context, input CreateScheduleInput) (domain.Schedule, error) {
	ctx, span := startSpan(ctx, "CreateSchedule")
	defer span.End()

	if err := s.requireManager(input.Caller); err != nil {
		return domain.Schedule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()

	// Input validation precedes identity resolution.
	asset, err := domain.NormalizeAsset(input.Asset)
	if err != nil {
		return domain.Schedule{}, mapDomainErr(err, input.Handle)
	}
	if input.AmountPerPeriod.Sign() <= 0 {
		return domain.Schedule{}, mapDomainErr(domain.ErrInvalidAmount, input.Handle)
	}
	if !input.OneTime && input.Interval.Duration() <= 0 {
		return domain.Schedule{}, mapDomainErr(domain.ErrInvalidInterval, input.Handle)
	}
	if !input.FirstPayment.After(now) {
		return domain.Schedule{}, mapDomainErr(domain.ErrPastFirstPayment, input.Handle)
	}

	handle, _, err := s.resolveHandle(ctx, input.Handle)
	if err != nil {
		return domain.Schedule{}, err
	}

	existing, err := s.store.GetSchedule(ctx, handle)
	switch {
	case err == nil && existing.Active:
		return domain.Schedule{}, apperrors.WithMetadata(apperrors.CodeScheduleExists,
			"handle already has an active schedule", map[string]string{"handle": handle})
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return domain.Schedule{}, apperrors.Wrap(apperrors.CodeInternal, "load schedule", err)
	}

	schedule, err := domain.OpenSchedule(domain.OpenScheduleInput{
		Handle:          handle,
		Asset:           asset,
		AmountPerPeriod: input.AmountPerPeriod,
		Interval:        input.Interval,
		OneTime:         input.OneTime,
		FirstPayment:    input.FirstPayment,
	}, s.clock)
	if err != nil {
		return domain.Schedule{}, mapDomainErr(err, handle)
	}

	if err := s.store.PutSchedule(ctx, schedule); err != nil {
		return domain.Schedule{}, apperrors.Wrap(apperrors.CodeInternal, "persist schedule", err)
	}
	if err := s.emit(ctx, handle, asset, event.TypeScheduleOpened, map[string]string{
		"amount":        schedule.AmountPerPeriod.String(),
		"interval":      schedule.Interval.String(),
		"one_time":      strconv.FormatBool(schedule.OneTime),
		"first_payment": schedule.FirstPayment.Format(time.RFC3339),
	}); err != nil {
		return domain.Schedule{}, err
	}

	log.Printf("schedule opened handle=%s asset=%s amount=%s interval=%s one_time=%t",
		handle, asset.Code, schedule.AmountPerPeriod, schedule.Interval, schedule.OneTime)
	return schedule, nil
}

// CancelSchedule deactivates a handle's active schedule. Nothing is refunded
// because schedules hold no funds.
func (s *Service) CancelSchedule(ctx context.Context, caller, handle string) error {
	ctx, span := startSpan(ctx, "CancelSchedule")
	defer span.End()

	if err := s.requireManager(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, err := s.activeSchedule(ctx, handle)
	if err != nil {
		return err
	}

	now := s.clock().UTC()
	if err := s.store.PutSchedule(ctx, schedule.Closed(now)); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "persist schedule", err)
	}
	if err := s.emit(ctx, schedule.Handle, schedule.Asset, event.TypeScheduleClosed, nil); err != nil {
		return err
	}

	log.Printf("schedule closed handle=%s asset=%s", schedule.Handle, schedule.Asset.Code)
	return nil
}

// EditSchedule changes the per-period amount of a handle's active schedule.
// The interval and next payment time are unchanged.
func (s *Service) EditSchedule(ctx context.Context, caller, handle string, amount decimal.Decimal) (domain.Schedule, error) {
	ctx, span := startSpan(ctx, "EditSchedule")
	defer span.End()

	if err := s.requireManager(caller); err != nil {
		return domain.Schedule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, err := s.activeSchedule(ctx, handle)
	if err != nil {
		return domain.Schedule{}, err
	}

	now := s.clock().UTC()
	updated, err := schedule.WithAmount(amount, now)
	if err != nil {
		return domain.Schedule{}, mapDomainErr(err, schedule.Handle)
	}

	if err := s.store.PutSchedule(ctx, updated); err != nil {
		return domain.Schedule{}, apperrors.Wrap(apperrors.CodeInternal, "persist schedule", err)
	}
	if err := s.emit(ctx, updated.Handle, updated.Asset, event.TypeScheduleUpdated, map[string]string{
		"amount": updated.AmountPerPeriod.String(),
	}); err != nil {
		return domain.Schedule{}, err
	}

	log.Printf("schedule updated handle=%s asset=%s amount=%s",
		updated.Handle, updated.Asset.Code, updated.AmountPerPeriod)
	return updated, nil
}

// PayoutReceipt reports a claimed schedule payout.
type PayoutReceipt struct {
	// Amount is the total paid, in native units, across all covered periods.
	Amount decimal.Decimal
	// Periods is how many periods the payout covered. A recurring schedule
	// claimed late covers every missed period in one payment.
	Periods int64
	// Payee is the address the payment went to.
	Payee string
}

// RequestSchedulePayout claims every due period on a handle's active
// schedule. The payment goes to the address the handle resolves to at claim
// time. A schedule with nothing due fails with PAYMENT_NOT_DUE; a one-time
// schedule deactivates after paying.
func (s *Service) RequestSchedulePayout(ctx context.Context, handle string) (PayoutReceipt, error) {
	ctx, span := startSpan(ctx, "RequestSchedulePayout")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, err := s.activeSchedule(ctx, handle)
	if err != nil {
		return PayoutReceipt{}, err
	}

	now := s.clock().UTC()
	periods := schedule.PeriodsDue(now)
	if periods <= 0 {
		return PayoutReceipt{}, apperrors.WithMetadata(apperrors.CodePaymentNotDue,
			"the next payment is not due yet", map[string]string{
				"handle":       schedule.Handle,
				"next_payment": schedule.NextPayment.Format(time.RFC3339),
			})
	}

	_, payee, err := s.resolveHandle(ctx, schedule.Handle)
	if err != nil {
		return PayoutReceipt{}, err
	}

	total := schedule.AmountPerPeriod.Mul(decimal.NewFromInt(periods))
	calls := []executor.Call{
		{Target: "vault", Op: "debit", Do: func(ctx context.Context) error {
			return s.funds.Debit(schedule.Asset.Code, total)
		}},
	}
	if err := s.execute(ctx, calls); err != nil {
		return PayoutReceipt{}, err
	}

	updated := schedule.AfterPayout(periods, now)
	if err := s.store.PutSchedule(ctx, updated); err != nil {
		return PayoutReceipt{}, apperrors.Wrap(apperrors.CodeInternal, "persist schedule", err)
	}
	if err := s.emit(ctx, updated.Handle, updated.Asset, event.TypeSchedulePayout, map[string]string{
		"amount":  total.String(),
		"periods": strconv.FormatInt(periods, 10),
		"payee":   payee,
	}); err != nil {
		return PayoutReceipt{}, err
	}
	if schedule.OneTime {
		if err := s.emit(ctx, updated.Handle, updated.Asset, event.TypeScheduleClosed, nil); err != nil {
			return PayoutReceipt{}, err
		}
	}

	log.Printf("schedule payout handle=%s asset=%s amount=%s periods=%d payee=%s",
		updated.Handle, updated.Asset.Code, total, periods, payee)
	return PayoutReceipt{Amount: total, Periods: periods, Payee: payee}, nil
}

// activeSchedule loads the schedule for handle and requires it to be active.
func (s *Service) activeSchedule(ctx context.Context, handle string) (domain.Schedule, error) {
	normalized, err := identity.NormalizeHandle(handle)
	if err != nil {
		return domain.Schedule{}, apperrors.WithMetadata(apperrors.CodeInvalidHandle,
			"handle is malformed", map[string]string{"handle": handle})
	}
	schedule, err := s.store.GetSchedule(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Schedule{}, apperrors.WithMetadata(apperrors.CodeScheduleNotFound,
			"no schedule exists for handle", map[string]string{"handle": normalized})
	}
	if err != nil {
		return domain.Schedule{}, apperrors.Wrap(apperrors.CodeInternal, "load schedule", err)
	}
	if !schedule.Active {
		return domain.Schedule{}, apperrors.WithMetadata(apperrors.CodeScheduleNotActive,
			"handle has no active schedule", map[string]string{"handle": normalized})
	}
	return schedule, nil
}
