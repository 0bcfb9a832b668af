// Package ledger defines the contract of the per-asset settlement ledger.
//
// The settlement ledger is address-keyed: a flow is identified by the hash of
// (payer, payee, rate) and is immutably bound to the payee address it was
// opened with. The payment core consumes one ledger instance per asset.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/shopspring/decimal"
)

// MaxRateBits is the widest per-second rate the ledger can represent.
const MaxRateBits = 96

var (
	// ErrFlowExists indicates an open flow already exists for (payer, payee, rate).
	ErrFlowExists = errors.New("flow already exists")
	// ErrFlowNotFound indicates no open flow for (payer, payee, rate).
	ErrFlowNotFound = errors.New("flow does not exist")
	// ErrInvalidRate indicates a non-positive or too-wide flow rate.
	ErrInvalidRate = errors.New("flow rate is invalid")
	// ErrInsufficientDeposit indicates the payer's unallocated deposit cannot
	// cover the operation.
	ErrInsufficientDeposit = errors.New("insufficient deposited balance")
)

// FlowID derives the deterministic flow identity from (payer, payee, rate).
func FlowID(payer, payee string, ratePerSecond decimal.Decimal) string {
	h := sha256.New()
	h.Write([]byte(payer))
	h.Write([]byte{0})
	h.Write([]byte(payee))
	h.Write([]byte{0})
	h.Write([]byte(ratePerSecond.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// Ledger is the per-asset settlement ledger consumed by the payment core.
//
// Deposits accumulate in the payer's unallocated balance; OpenFlow reserves
// the payer's entire unallocated balance for the new flow. CloseFlow returns
// the flow's residual (reserve minus withdrawn, including any accrual the
// payee never withdrew) to the payer.
type Ledger interface {
	// Deposit credits amount, in native units, to the payer's unallocated balance.
	Deposit(ctx context.Context, payer string, amount decimal.Decimal) error
	// OpenFlow opens a flow at ratePerSecond and returns its flow id.
	OpenFlow(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (string, error)
	// CloseFlow closes the flow and returns the residual swept to the payer.
	CloseFlow(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (decimal.Decimal, error)
	// Owed returns the native units the payee could withdraw right now.
	Owed(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (decimal.Decimal, error)
	// Withdraw pays all currently-owed native units to the payee and returns
	// the amount moved. A zero withdrawal is not an error.
	Withdraw(ctx context.Context, payer, payee string, ratePerSecond decimal.Decimal) (decimal.Decimal, error)
	// Balance returns the payer's unallocated deposit in native units.
	Balance(ctx context.Context, payer string) (decimal.Decimal, error)
}
