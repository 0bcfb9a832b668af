package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finialabs/outlay/internal/treasury/rate"
	"github.com/shopspring/decimal"
)

// Book is an in-process settlement ledger for a single asset.
//
// It models the external continuous-flow ledger the core settles against:
// linear accrual per flow, per-flow reserves taken from the payer's
// unallocated deposit, and residual sweeps on close. The daemon and the
// tests run against Book; production deployments swap in an adapter to the
// real settlement system behind the same interface.
type Book struct {
	asset    string
	decimals int32
	clock    func() time.Time

	mu          sync.Mutex
	unallocated map[string]decimal.Decimal
	flows       map[string]*flow
}

type flow struct {
	payer     string
	payee     string
	rate      decimal.Decimal
	openedAt  time.Time
	reserve   decimal.Decimal
	withdrawn decimal.Decimal
}

// NewBook creates a settlement book for one asset with the given native
// decimal count. A nil clock defaults to time.Now.
func NewBook(asset string, decimals int32, clock func() time.Time) *Book {
	if clock == nil {
		clock = time.Now
	}
	return &Book{
		asset:       asset,
		decimals:    decimals,
		clock:       clock,
		unallocated: map[string]decimal.Decimal{},
		flows:       map[string]*flow{},
	}
}

// Asset returns the asset this book settles.
func (b *Book) Asset() string { return b.asset }

// Deposit implements Ledger.
func (b *Book) Deposit(ctx context.Context, payer string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return errors.New("deposit amount must not be negative")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unallocated[payer] = b.unallocated[payer].Add(amount)
	return nil
}

// OpenFlow implements Ledger. The payer's entire unallocated deposit becomes
// the new flow's reserve.
func (b *Book) OpenFlow(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ratePerSecond.Sign() <= 0 || ratePerSecond.BigInt().BitLen() > MaxRateBits {
		return "", ErrInvalidRate
	}

	id := FlowID(payer, payee, ratePerSecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, open := b.flows[id]; open {
		return "", ErrFlowExists
	}
	b.flows[id] = &flow{
		payer:     payer,
		payee:     payee,
		rate:      ratePerSecond,
		openedAt:  b.clock().UTC(),
		reserve:   b.unallocated[payer],
		withdrawn: decimal.Zero,
	}
	b.unallocated[payer] = decimal.Zero
	return id, nil
}

// CloseFlow implements Ledger. The residual includes accrual the payee never
// withdrew; the payee forfeits it from this point forward.
func (b *Book) CloseFlow(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	id := FlowID(payer, payee, ratePerSecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	f, open := b.flows[id]
	if !open {
		return decimal.Zero, ErrFlowNotFound
	}
	delete(b.flows, id)
	return f.reserve.Sub(f.withdrawn), nil
}

// Owed implements Ledger.
func (b *Book) Owed(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	id := FlowID(payer, payee, ratePerSecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	f, open := b.flows[id]
	if !open {
		return decimal.Zero, ErrFlowNotFound
	}
	return b.owedLocked(f), nil
}

// Withdraw implements Ledger.
func (b *Book) Withdraw(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	id := FlowID(payer, payee, ratePerSecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	f, open := b.flows[id]
	if !open {
		return decimal.Zero, ErrFlowNotFound
	}
	owed := b.owedLocked(f)
	if owed.Sign() <= 0 {
		return decimal.Zero, nil
	}
	f.withdrawn = f.withdrawn.Add(owed)
	return owed, nil
}

// Balance implements Ledger.
func (b *Book) Balance(ctx context.Context, payer string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unallocated[payer], nil
}

// owedLocked computes withdrawable native units: linear accrual since open,
// minus prior withdrawals, capped by the flow reserve.
func (b *Book) owedLocked(f *flow) decimal.Decimal {
	elapsed := int64(b.clock().UTC().Sub(f.openedAt) / time.Second)
	accrued := rate.Accrue(f.rate, elapsed, b.decimals)
	owed := accrued.Sub(f.withdrawn)
	remaining := f.reserve.Sub(f.withdrawn)
	if owed.GreaterThan(remaining) {
		owed = remaining
	}
	if owed.Sign() < 0 {
		return decimal.Zero
	}
	return owed
}

// Snapshot captures the book state for atomic batch rollback.
func (b *Book) Snapshot() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	unallocated := make(map[string]decimal.Decimal, len(b.unallocated))
	for payer, balance := range b.unallocated {
		unallocated[payer] = balance
	}
	flows := make(map[string]*flow, len(b.flows))
	for id, f := range b.flows {
		copied := *f
		flows[id] = &copied
	}
	return &bookState{unallocated: unallocated, flows: flows}
}

// Restore reinstates a snapshot taken by Snapshot.
func (b *Book) Restore(snapshot any) {
	state, ok := snapshot.(*bookState)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unallocated = state.unallocated
	b.flows = state.flows
}

// Name identifies the book as an executor resource.
func (b *Book) Name() string { return "ledger/" + b.asset }

type bookState struct {
	unallocated map[string]decimal.Decimal
	flows       map[string]*flow
}
