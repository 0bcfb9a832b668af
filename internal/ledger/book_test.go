package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// tickingClock is a settable clock for accrual tests.
type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now() time.Time { return c.now }

func (c *tickingClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBook(t *testing.T) (*Book, *tickingClock) {
	t.Helper()
	clock := &tickingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewBook("usdc", 6, clock.Now), clock
}

func TestFlowIDIsDeterministic(t *testing.T) {
	rate := decimal.RequireFromString("38580246913580246")
	first := FlowID("treasury", "0xabc", rate)
	second := FlowID("treasury", "0xabc", rate)
	if first != second {
		t.Fatalf("flow id not deterministic: %q vs %q", first, second)
	}
	if FlowID("treasury", "0xdef", rate) == first {
		t.Fatal("different payees produced the same flow id")
	}
	if FlowID("treasury", "0xabc", rate.Add(decimal.NewFromInt(1))) == first {
		t.Fatal("different rates produced the same flow id")
	}
}

func TestOpenFlowReservesUnallocatedDeposit(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()
	rate := decimal.RequireFromString("38580246913580246")

	if err := book.Deposit(ctx, "treasury", decimal.NewFromInt(1000000000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("open flow: %v", err)
	}

	balance, err := book.Balance(ctx, "treasury")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("unallocated balance = %s, want 0 after open", balance)
	}
}

func TestOpenFlowRejectsDuplicateAndBadRates(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()
	rate := decimal.RequireFromString("38580246913580246")

	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("open flow: %v", err)
	}
	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); !errors.Is(err, ErrFlowExists) {
		t.Fatalf("duplicate open error = %v, want %v", err, ErrFlowExists)
	}
	if _, err := book.OpenFlow(ctx, "treasury", "0xdef", decimal.Zero); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("zero rate error = %v, want %v", err, ErrInvalidRate)
	}
	wide := decimal.New(1, 0).Shift(40) // 10^40, wider than 96 bits
	if _, err := book.OpenFlow(ctx, "treasury", "0xdef", wide); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("wide rate error = %v, want %v", err, ErrInvalidRate)
	}
}

func TestOwedAccruesLinearlyAndCapsAtReserve(t *testing.T) {
	book, clock := newTestBook(t)
	ctx := context.Background()
	// 1000.000000 over 30 days.
	rate := decimal.RequireFromString("38580246913580246")
	deposit := decimal.NewFromInt(1000000000)

	if err := book.Deposit(ctx, "treasury", deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("open flow: %v", err)
	}

	clock.Advance(24 * time.Hour)
	owed, err := book.Owed(ctx, "treasury", "0xabc", rate)
	if err != nil {
		t.Fatalf("owed: %v", err)
	}
	// One day of a 30-day stream: 33.333333 in native units.
	want := decimal.NewFromInt(33333333)
	if !owed.Equal(want) {
		t.Fatalf("owed after one day = %s, want %s", owed, want)
	}

	// Far past the end the accrual caps at the reserve.
	clock.Advance(366 * 24 * time.Hour)
	owed, err = book.Owed(ctx, "treasury", "0xabc", rate)
	if err != nil {
		t.Fatalf("owed: %v", err)
	}
	if owed.GreaterThan(deposit) {
		t.Fatalf("owed = %s exceeds reserve %s", owed, deposit)
	}
}

func TestWithdrawMovesOwedOnceAndNeverNegative(t *testing.T) {
	book, clock := newTestBook(t)
	ctx := context.Background()
	rate := decimal.RequireFromString("38580246913580246")

	if err := book.Deposit(ctx, "treasury", decimal.NewFromInt(1000000000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("open flow: %v", err)
	}

	clock.Advance(24 * time.Hour)
	paid, err := book.Withdraw(ctx, "treasury", "0xabc", rate)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !paid.Equal(decimal.NewFromInt(33333333)) {
		t.Fatalf("withdrawn = %s, want 33333333", paid)
	}

	// Nothing more accrued yet; a second withdrawal moves nothing.
	again, err := book.Withdraw(ctx, "treasury", "0xabc", rate)
	if err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if !again.IsZero() {
		t.Fatalf("second withdrawal = %s, want 0", again)
	}
}

func TestCloseFlowReturnsResidual(t *testing.T) {
	book, clock := newTestBook(t)
	ctx := context.Background()
	rate := decimal.RequireFromString("38580246913580246")
	deposit := decimal.NewFromInt(1000000000)

	if err := book.Deposit(ctx, "treasury", deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("open flow: %v", err)
	}

	clock.Advance(24 * time.Hour)
	paid, err := book.Withdraw(ctx, "treasury", "0xabc", rate)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	residual, err := book.CloseFlow(ctx, "treasury", "0xabc", rate)
	if err != nil {
		t.Fatalf("close flow: %v", err)
	}
	if !residual.Equal(deposit.Sub(paid)) {
		t.Fatalf("residual = %s, want %s", residual, deposit.Sub(paid))
	}

	if _, err := book.Owed(ctx, "treasury", "0xabc", rate); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("owed after close error = %v, want %v", err, ErrFlowNotFound)
	}
}

func TestSnapshotRestoreRewindsState(t *testing.T) {
	book, clock := newTestBook(t)
	ctx := context.Background()
	rate := decimal.RequireFromString("38580246913580246")

	if err := book.Deposit(ctx, "treasury", decimal.NewFromInt(1000000000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	snapshot := book.Snapshot()

	if _, err := book.OpenFlow(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("open flow: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := book.Withdraw(ctx, "treasury", "0xabc", rate); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	book.Restore(snapshot)

	balance, err := book.Balance(ctx, "treasury")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1000000000)) {
		t.Fatalf("restored balance = %s, want 1000000000", balance)
	}
	if _, err := book.Owed(ctx, "treasury", "0xabc", rate); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("owed after restore error = %v, want %v", err, ErrFlowNotFound)
	}
}
