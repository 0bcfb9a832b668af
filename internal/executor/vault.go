package executor

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds indicates the pooled treasury balance cannot cover a debit.
var ErrInsufficientFunds = errors.New("insufficient treasury balance")

// Vault holds the pooled treasury balance per asset, in native units.
type Vault struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

// NewVault creates an empty treasury vault.
func NewVault() *Vault {
	return &Vault{balances: map[string]decimal.Decimal{}}
}

// Credit adds amount to the pooled balance for asset.
func (v *Vault) Credit(asset string, amount decimal.Decimal) {
	if amount.Sign() <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[asset] = v.balances[asset].Add(amount)
}

// Debit removes amount from the pooled balance for asset.
// The whole debit fails when the balance cannot cover it.
func (v *Vault) Debit(asset string, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return errors.New("debit amount must not be negative")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	balance := v.balances[asset]
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	v.balances[asset] = balance.Sub(amount)
	return nil
}

// Balance returns the pooled balance for asset.
func (v *Vault) Balance(asset string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[asset]
}

// Snapshot captures the vault state for atomic batch rollback.
func (v *Vault) Snapshot() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	balances := make(map[string]decimal.Decimal, len(v.balances))
	for asset, balance := range v.balances {
		balances[asset] = balance
	}
	return balances
}

// Restore reinstates a snapshot taken by Snapshot.
func (v *Vault) Restore(snapshot any) {
	balances, ok := snapshot.(map[string]decimal.Decimal)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances = balances
}

// Name identifies the vault as an executor resource.
func (v *Vault) Name() string { return "vault" }
