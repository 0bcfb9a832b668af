package service

import (
	"context"
	"errors"
	"log"

	apperrors "github.com/finialabs/outlay/internal/errors"
	"github.com/finialabs/outlay/internal/executor"
	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/shopspring/decimal"
)

// MigrateStream rebinds a handle's active settlement flow to the address the
// handle currently resolves to. Only that address may request the migration.
//
// The flow at the old bound address is closed, its residual redeposited for
// the treasury, and a flow at the unchanged rate opened at the current
// address. Withdrawals the old address already made are untouched; accrual it
// never withdrew moves with the residual. Migration is repeatable: each call
// reconciles against the registry's current resolution.
func (s *Service) MigrateStream(ctx context.Context, caller, handle string) (domain.Stream, error) {
	ctx, span := startSpan(ctx, "MigrateStream")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	normalized, current, err := s.resolveHandle(ctx, handle)
	if err != nil {
		return domain.Stream{}, err
	}
	if caller != current {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeUnauthorizedMigration,
			"only the current controlling address may migrate",
			map[string]string{"handle": normalized})
	}

	// An inactive stream has no flow to migrate; it reads the same as no
	// stream at all.
	stream, err := s.store.GetStream(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !stream.Active) {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeStreamNotFound,
			"no active stream exists for handle", map[string]string{"handle": normalized})
	}
	if err != nil {
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "load stream", err)
	}
	if stream.BoundAddress == current {
		return domain.Stream{}, apperrors.WithMetadata(apperrors.CodeNoMigrationNeeded,
			"stream is already bound to the current address",
			map[string]string{"handle": normalized})
	}

	book, err := s.ledgerFor(stream.Asset)
	if err != nil {
		return domain.Stream{}, err
	}

	previous := stream.BoundAddress
	var residual decimal.Decimal
	calls := []executor.Call{
		{Target: "ledger/" + stream.Asset.Code, Op: "close-flow", Do: func(ctx context.Context) error {
			swept, err := book.CloseFlow(ctx, treasuryAccount, previous, stream.RatePerSecond)
			if err != nil {
				return err
			}
			residual = swept
			return nil
		}},
		{Target: "ledger/" + stream.Asset.Code, Op: "deposit", Do: func(ctx context.Context) error {
			return book.Deposit(ctx, treasuryAccount, residual)
		}},
		{Target: "ledger/" + stream.Asset.Code, Op: "open-flow", Do: func(ctx context.Context) error {
			_, err := book.OpenFlow(ctx, treasuryAccount, current, stream.RatePerSecond)
			return err
		}},
	}
	if err := s.execute(ctx, calls); err != nil {
		return domain.Stream{}, err
	}

	now := s.clock().UTC()
	migrated := stream.Rebound(current, now)
	if err := s.store.PutStream(ctx, migrated); err != nil {
		return domain.Stream{}, apperrors.Wrap(apperrors.CodeInternal, "persist stream", err)
	}
	if err := s.emit(ctx, migrated.Handle, migrated.Asset, event.TypeStreamMigrated, map[string]string{
		"from":     previous,
		"to":       current,
		"residual": residual.String(),
	}); err != nil {
		return domain.Stream{}, err
	}

	log.Printf("stream migrated handle=%s asset=%s from=%s to=%s residual=%s",
		migrated.Handle, migrated.Asset.Code, previous, current, residual)
	return migrated, nil
}
