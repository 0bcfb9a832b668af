package executor

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestVaultDebitRequiresSufficientBalance(t *testing.T) {
	vault := NewVault()
	vault.Credit("usdc", decimal.NewFromInt(50))

	if err := vault.Debit("usdc", decimal.NewFromInt(60)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("debit error = %v, want %v", err, ErrInsufficientFunds)
	}
	if got := vault.Balance("usdc"); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance after failed debit = %s, want 50", got)
	}

	if err := vault.Debit("usdc", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := vault.Balance("usdc"); !got.IsZero() {
		t.Fatalf("balance = %s, want 0", got)
	}
}

func TestVaultBalancesAreSegregatedByAsset(t *testing.T) {
	vault := NewVault()
	vault.Credit("usdc", decimal.NewFromInt(100))
	vault.Credit("flux", decimal.NewFromInt(7))

	if err := vault.Debit("flux", decimal.NewFromInt(100)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("cross-asset debit error = %v, want %v", err, ErrInsufficientFunds)
	}
	if got := vault.Balance("usdc"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("usdc balance = %s, want 100", got)
	}
}

func TestVaultSnapshotRestore(t *testing.T) {
	vault := NewVault()
	vault.Credit("usdc", decimal.NewFromInt(100))
	snapshot := vault.Snapshot()

	vault.Credit("usdc", decimal.NewFromInt(900))
	vault.Restore(snapshot)

	if got := vault.Balance("usdc"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("restored balance = %s, want 100", got)
	}
}
