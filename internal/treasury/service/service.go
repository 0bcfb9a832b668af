// Package service implements the payment orchestration operations: stream
// and schedule lifecycles, payouts, and stream migration.
//
// Every operation runs as one serialized transaction: validation first, then
// the settlement batch through the treasury executor, then persistence and
// the journal event. A failed settlement batch leaves no partial state.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/finialabs/outlay/internal/errors"
	"github.com/finialabs/outlay/internal/executor"
	"github.com/finialabs/outlay/internal/identity"
	"github.com/finialabs/outlay/internal/ledger"
	"github.com/finialabs/outlay/internal/storage"
	"github.com/finialabs/outlay/internal/telemetry"
	"github.com/finialabs/outlay/internal/treasury/domain"
	"github.com/finialabs/outlay/internal/treasury/event"
	"github.com/finialabs/outlay/internal/treasury/rate"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// treasuryAccount is the payer account every settlement flow draws from.
const treasuryAccount = "treasury"

// ledgerMaxRateBits bounds the per-second rate width at normalization time so
// a rate the ledger cannot represent fails before any funds move.
const ledgerMaxRateBits = ledger.MaxRateBits

var tracer = otel.Tracer("github.com/finialabs/outlay/internal/treasury/service")

// Funds is the pooled treasury balance settlement batches draw on.
type Funds interface {
	Credit(asset string, amount decimal.Decimal)
	Debit(asset string, amount decimal.Decimal) error
	Balance(asset string) decimal.Decimal
}

// LedgerFactory returns the settlement ledger instance for an asset.
type LedgerFactory func(asset domain.Asset) (ledger.Ledger, error)

// Config wires a Service.
type Config struct {
	// Manager is the address allowed to perform manager-gated operations.
	Manager string
	// Registry resolves handles to controlling addresses.
	Registry identity.Registry
	// Store persists streams, schedules, and the event journal.
	Store storage.Store
	// Ledgers discovers the per-asset settlement ledger. Instances are
	// memoized; discovery runs once per asset.
	Ledgers LedgerFactory
	// Executor applies settlement batches atomically.
	Executor executor.Executor
	// Funds is the pooled treasury balance.
	Funds Funds
	// Emitter records payment events. Optional.
	Emitter *telemetry.Emitter
	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Service orchestrates treasury payments to handles.
type Service struct {
	mu       sync.Mutex
	manager  string
	registry identity.Registry
	store    storage.Store
	factory  LedgerFactory
	ledgers  map[string]ledger.Ledger
	exec     executor.Executor
	funds    Funds
	emitter  *telemetry.Emitter
	clock    func() time.Time
}

// New creates a payment service.
func New(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.Manager) == "" {
		return nil, fmt.Errorf("manager address is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("identity registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Ledgers == nil {
		return nil, fmt.Errorf("ledger factory is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Funds == nil {
		return nil, fmt.Errorf("treasury funds are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		manager:  strings.TrimSpace(cfg.Manager),
		registry: cfg.Registry,
		store:    cfg.Store,
		factory:  cfg.Ledgers,
		ledgers:  map[string]ledger.Ledger{},
		exec:     cfg.Executor,
		funds:    cfg.Funds,
		emitter:  cfg.Emitter,
		clock:    clock,
	}, nil
}

// TreasuryBalance returns the pooled treasury balance for an asset.
func (s *Service) TreasuryBalance(asset string) decimal.Decimal {
	return s.funds.Balance(asset)
}

// requireManager gates an operation on the configured manager address.
func (s *Service) requireManager(caller string) error {
	if strings.TrimSpace(caller) == "" || caller != s.manager {
		return apperrors.New(apperrors.CodeUnauthorized, "caller is not the treasury manager")
	}
	return nil
}

// ledgerFor returns the memoized settlement ledger for asset, discovering it
// on first use.
func (s *Service) ledgerFor(asset domain.Asset) (ledger.Ledger, error) {
	if instance, ok := s.ledgers[asset.Code]; ok {
		return instance, nil
	}
	instance, err := s.factory(asset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLedgerFailure, "discover settlement ledger", err)
	}
	s.ledgers[asset.Code] = instance
	return instance, nil
}

// resolveHandle normalizes a handle and resolves its controlling address.
func (s *Service) resolveHandle(ctx context.Context, handle string) (string, string, error) {
	normalized, err := identity.NormalizeHandle(handle)
	if err != nil {
		return "", "", apperrors.WithMetadata(apperrors.CodeInvalidHandle,
			"handle is malformed", map[string]string{"handle": handle})
	}
	address, err := s.registry.Resolve(ctx, normalized)
	if err != nil {
		if errors.Is(err, identity.ErrHandleNotFound) {
			return "", "", apperrors.WithMetadata(apperrors.CodeHandleNotFound,
				"handle is not claimed", map[string]string{"handle": normalized})
		}
		return "", "", apperrors.Wrap(apperrors.CodeInternal, "resolve handle", err)
	}
	return normalized, address, nil
}

// execute runs a settlement batch, mapping executor failures to domain codes.
func (s *Service) execute(ctx context.Context, calls []executor.Call) error {
	err := s.exec.Execute(ctx, calls)
	if err == nil {
		return nil
	}
	if errors.Is(err, executor.ErrInsufficientFunds) || errors.Is(err, ledger.ErrInsufficientDeposit) {
		return apperrors.Wrap(apperrors.CodeInsufficientFunds, "treasury cannot fund the operation", err)
	}
	return apperrors.Wrap(apperrors.CodeLedgerFailure, "settlement batch failed", err)
}

// emit records a payment event, failing the operation on journal errors so
// no effect goes unrecorded.
func (s *Service) emit(ctx context.Context, handle string, asset domain.Asset, eventType event.Type, payload map[string]string) error {
	evt, err := event.New(handle, asset.Code, eventType, payload)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "build event", err)
	}
	if err := s.emitter.Emit(ctx, evt); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "record event", err)
	}
	return nil
}

// mapDomainErr converts domain and rate sentinels into coded errors.
func mapDomainErr(err error, handle string) error {
	meta := map[string]string{"handle": handle}
	switch {
	case errors.Is(err, identity.ErrInvalidHandle):
		return apperrors.WithMetadata(apperrors.CodeInvalidHandle, "handle is malformed", meta)
	case errors.Is(err, domain.ErrInvalidAsset), errors.Is(err, rate.ErrInvalidPrecision):
		return apperrors.WithMetadata(apperrors.CodeInvalidAsset, "asset is invalid", meta)
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, rate.ErrNonPositiveAmount),
		errors.Is(err, rate.ErrZeroRate):
		return apperrors.WithMetadata(apperrors.CodeInvalidAmount, "amount is invalid", meta)
	case errors.Is(err, domain.ErrPastEndTime), errors.Is(err, rate.ErrInvalidDuration):
		return apperrors.WithMetadata(apperrors.CodePastEndTime, "end time must be in the future", meta)
	case errors.Is(err, domain.ErrPastFirstPayment):
		return apperrors.WithMetadata(apperrors.CodePastFirstPayment, "first payment time must be in the future", meta)
	case errors.Is(err, domain.ErrInvalidInterval):
		return apperrors.WithMetadata(apperrors.CodeInvalidInterval, "interval is invalid", meta)
	case errors.Is(err, rate.ErrOverflow):
		return apperrors.WithMetadata(apperrors.CodeRateOverflow, "rate exceeds the ledger width", meta)
	default:
		return apperrors.Wrap(apperrors.CodeInternal, "payment validation failed", err)
	}
}

// startSpan opens a trace span for an operation.
func startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "treasury."+op)
}
