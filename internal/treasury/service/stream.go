package service

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/finialabs/outlay/internal/errors"
	"github.com/finialabs/outlay/internal/executor"
	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/finialabs/outlay/internal/treasury/rate"
	"github.com/shopspring/decimal"
)

// CreateStreamInput describes a continuous payment stream to open.
type CreateStreamInput struct {
	// Caller is the address requesting the operation.
	Caller string
	Handle string
	Asset  domain.Asset
	// TotalAmount, in native units, pays out evenly between now and EndTime.
	TotalAmount decimal.Decimal
	EndTime     time.Time
}

// CreateStream opens a continuous stream to a handle: the total amount is
// moved from the treasury into a settlement flow bound to the handle's
// current address. One active stream per handle.
func (s *Service) CreateStream(ctx context.Context, input CreateStreamInput) (domain.Stream, error) {
	ctx, span := startSpan(ctx, "CreateStream")
	defer span.End()

	if err := s.requireManager(input.Caller); err != nil {
		return domain.Stream{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()

	// Input validation precedes identity resolution and every external call.
	asset, err := domain.NormalizeAsset(input.Asset)
	if err != nil {
		return domain.Stream{}, mapDomainErr(err, input.Handle)
	}
	if input.TotalAmount.Sign() <= 0 {
		return domain.Stream{}, mapDomainErr(domain.ErrInvalidAmount, input.Handle)
	}
	if !input.EndTime.After(now) {
		return domain.Stream{}, mapDomainErr(domain.ErrPastEndTime, input.Handle)
	}

	handle, address, err := s.resolveHandle(ctx, input.Handle)
	if err != nil {
		return domain.Stream{}, err
	}

	existing, err := s.store.GetStream(ctx, handle)
	switch {
	case err == nil && existing.Active:
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeStreamExists,
			"handle already has an active stream", map[string]string{"handle": handle})
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "load stream", err)
	}

	stream, err := domain.OpenStream(domain.OpenStreamInput{
		Handle:      handle,
		Asset:       asset,
		TotalAmount: input.TotalAmount,
		EndTime:     input.EndTime,
		Payee:       address,
	}, s.clock, ledgerMaxRateBits)
	if err != nil {
		return domain.Stream{}, mapDomainErr(err, handle)
	}

	book, err := s.ledgerFor(asset)
	if err != nil {
		return domain.Stream{}, err
	}

	calls := []executor.Call{
		{Target: "vault", Op: "debit", Do: func(ctx context.Context) error {
			return s.funds.Debit(asset.Code, input.TotalAmount)
		}},
		{Target: "ledger/" + asset.Code, Op: "deposit", Do: func(ctx context.Context) error {
			return book.Deposit(ctx, treasuryAccount, input.TotalAmount)
		}},
		{Target: "ledger/" + asset.Code, Op: "open-flow", Do: func(ctx context.Context) error {
			_, err := book.OpenFlow(ctx, treasuryAccount, address, stream.RatePerSecond)
			return err
		}},
	}
	if err := s.execute(ctx, calls); err != nil {
		return domain.Stream{}, err
	}

	if err := s.store.PutStream(ctx, stream); err != nil {
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "persist stream", err)
	}
	if err := s.emit(ctx, handle, asset, event.TypeStreamOpened, map[string]string{
		"payee":    address,
		"rate":     stream.RatePerSecond.String(),
		"amount":   input.TotalAmount.String(),
		"end_time": stream.EndTime.Format(time.RFC3339),
	}); err != nil {
		return domain.Stream{}, err
	}

	log.Printf("stream opened handle=%s asset=%s rate=%s end=%s payee=%s",
		handle, asset.Code, stream.RatePerSecond, stream.EndTime.Format(time.RFC3339), address)
	return stream, nil
}

// CancelStream closes a handle's active stream. The flow's residual, any
// funds the payee never withdrew included, is swept back into the treasury.
// Returns the swept residual in native units.
func (s *Service) CancelStream(ctx context.Context, caller, handle string) (decimal.Decimal, error) {
	ctx, span := startSpan(ctx, "CancelStream")
	defer span.End()

	if err := s.requireManager(caller); err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream, err := s.activeStream(ctx, handle)
	if err != nil {
		return decimal.Zero, err
	}

	book, err := s.ledgerFor(stream.Asset)
	if err != nil {
		return decimal.Zero, err
	}

	var residual decimal.Decimal
	calls := []executor.Call{
		{Target: "ledger/" + stream.Asset.Code, Op: "close-flow", Do: func(ctx context.Context) error {
			swept, err := book.CloseFlow(ctx, treasuryAccount, stream.BoundAddress, stream.RatePerSecond)
			if err != nil {
				return err
			}
			residual = swept
			return nil
		}},
		{Target: "vault", Op: "credit", Do: func(ctx context.Context) error {
			s.funds.Credit(stream.Asset.Code, residual)
			return nil
		}},
	}
	if err := s.execute(ctx, calls); err != nil {
		return decimal.Zero, err
	}

	now := s.clock().UTC()
	if err := s.store.PutStream(ctx, stream.Closed(now)); err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.CodeInternal, "persist stream", err)
	}
	if err := s.emit(ctx, stream.Handle, stream.Asset, event.TypeStreamClosed, map[string]string{
		"residual": residual.String(),
	}); err != nil {
		return decimal.Zero, err
	}

	log.Printf("stream closed handle=%s asset=%s residual=%s", stream.Handle, stream.Asset.Code, residual)
	return residual, nil
}

// EditStreamInput describes a stream edit: a fresh total amount paid out
// over the stream's remaining duration.
type EditStreamInput struct {
	Caller      string
	Handle      string
	TotalAmount decimal.Decimal
}

// EditStream replaces an active stream's settlement flow with one carrying a
// rate renormalized over the time left until the stored end. The end time and
// bound address stay as they are. The old flow's residual returns to the
// treasury and the new total amount funds the replacement flow.
func (s *Service) EditStream(ctx context.Context, input EditStreamInput) (domain.Stream, error) {
	ctx, span := startSpan(ctx, "EditStream")
	defer span.End()

	if err := s.requireManager(input.Caller); err != nil {
		return domain.Stream{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if input.TotalAmount.Sign() <= 0 {
		return domain.Stream{}, mapDomainErr(domain.ErrInvalidAmount, input.Handle)
	}

	stream, err := s.activeStream(ctx, input.Handle)
	if err != nil {
		return domain.Stream{}, err
	}

	perSecond, err := rate.Normalize(input.TotalAmount, stream.EndTime.Sub(now), stream.Asset.Decimals, ledgerMaxRateBits)
	if err != nil {
		return domain.Stream{}, mapDomainErr(err, stream.Handle)
	}

	book, err := s.ledgerFor(stream.Asset)
	if err != nil {
		return domain.Stream{}, err
	}

	var residual decimal.Decimal
	calls := []executor.Call{
		{Target: "ledger/" + stream.Asset.Code, Op: "close-flow", Do: func(ctx context.Context) error {
			swept, err := book.CloseFlow(ctx, treasuryAccount, stream.BoundAddress, stream.RatePerSecond)
			if err != nil {
				return err
			}
			residual = swept
			return nil
		}},
		{Target: "vault", Op: "credit", Do: func(ctx context.Context) error {
			s.funds.Credit(stream.Asset.Code, residual)
			return nil
		}},
		{Target: "vault", Op: "debit", Do: func(ctx context.Context) error {
			return s.funds.Debit(stream.Asset.Code, input.TotalAmount)
		}},
		{Target: "ledger/" + stream.Asset.Code, Op: "deposit", Do: func(ctx context.Context) error {
			return book.Deposit(ctx, treasuryAccount, input.TotalAmount)
		}},
		{Target: "ledger/" + stream.Asset.Code, Op: "open-flow", Do: func(ctx context.Context) error {
			_, err := book.OpenFlow(ctx, treasuryAccount, stream.BoundAddress, perSecond)
			return err
		}},
	}
	if err := s.execute(ctx, calls); err != nil {
		return domain.Stream{}, err
	}

	updated := stream.WithRate(perSecond, stream.EndTime, now)
	if err := s.store.PutStream(ctx, updated); err != nil {
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "persist stream", err)
	}
	if err := s.emit(ctx, updated.Handle, updated.Asset, event.TypeStreamUpdated, map[string]string{
		"rate":     updated.RatePerSecond.String(),
		"amount":   input.TotalAmount.String(),
		"end_time": updated.EndTime.Format(time.RFC3339),
	}); err != nil {
		return domain.Stream{}, err
	}

	log.Printf("stream updated handle=%s asset=%s rate=%s end=%s",
		updated.Handle, updated.Asset.Code, updated.RatePerSecond, updated.EndTime.Format(time.RFC3339))
	return updated, nil
}

// RequestStreamPayout withdraws everything currently owed on a handle's
// active stream to its bound address and returns the amount in native units.
// Nothing accrued yet is not an error; the payout is simply zero.
func (s *Service) RequestStreamPayout(ctx context.Context, handle string) (decimal.Decimal, error) {
	ctx, span := startSpan(ctx, "RequestStreamPayout")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The handle must still resolve; the payout itself goes to the flow's
	// bound address, not the resolved one.
	handle, _, err := s.resolveHandle(ctx, handle)
	if err != nil {
		return decimal.Zero, err
	}

	stream, err := s.activeStream(ctx, handle)
	if err != nil {
		return decimal.Zero, err
	}

	book, err := s.ledgerFor(stream.Asset)
	if err != nil {
		return decimal.Zero, err
	}

	owed, err := book.Owed(ctx, treasuryAccount, stream.BoundAddress, stream.RatePerSecond)
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.CodeLedgerFailure, "query owed balance", err)
	}
	if owed.Sign() <= 0 {
		return decimal.Zero, nil
	}

	var paid decimal.Decimal
	calls := []executor.Call{
		{Target: "ledger/" + stream.Asset.Code, Op: "withdraw", Do: func(ctx context.Context) error {
			amount, err := book.Withdraw(ctx, treasuryAccount, stream.BoundAddress, stream.RatePerSecond)
			if err != nil {
				return err
			}
			paid = amount
			return nil
		}},
	}
	if err := s.execute(ctx, calls); err != nil {
		return decimal.Zero, err
	}

	now := s.clock().UTC()
	if err := s.store.PutStream(ctx, stream.WithPayout(now)); err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.CodeInternal, "persist stream", err)
	}
	if err := s.emit(ctx, stream.Handle, stream.Asset, event.TypeStreamPayout, map[string]string{
		"amount": paid.String(),
		"payee":  stream.BoundAddress,
	}); err != nil {
		return decimal.Zero, err
	}

	log.Printf("stream payout handle=%s asset=%s amount=%s payee=%s",
		stream.Handle, stream.Asset.Code, paid, stream.BoundAddress)
	return paid, nil
}

// activeStream loads the stream for handle and requires it to be active.
func (s *Service) activeStream(ctx context.Context, handle string) (domain.Stream, error) {
	normalized, err := identity.NormalizeHandle(handle)
	if err != nil {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeInvalidHandle,
			"handle is malformed", map[string]string{"handle": handle})
	}
	stream, err := s.store.GetStream(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeStreamNotFound,
			"no stream exists for handle", map[string]string{"handle": normalized})
	}
	if err != nil {
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "load stream", err)
	}
	if !stream.Active {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeStreamNotActive,
			"handle has no active stream", map[string]string{"handle": normalized})
	}
	return stream, nil
}
