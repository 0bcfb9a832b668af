package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestExecuteAppliesCallsInOrder(t *testing.T) {
	vault := NewVault()
	vault.Credit("usdc", decimal.NewFromInt(100))
	local := NewLocal(vault)

	var order []string
	err := local.Execute(context.Background(), []Call{
		{Target: "vault", Op: "debit", Do: func(ctx context.Context) error {
			order = append(order, "debit")
			return vault.Debit("usdc", decimal.NewFromInt(40))
		}},
		{Target: "vault", Op: "credit", Do: func(ctx context.Context) error {
			order = append(order, "credit")
			vault.Credit("usdc", decimal.NewFromInt(10))
			return nil
		}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(order) != 2 || order[0] != "debit" || order[1] != "credit" {
		t.Fatalf("call order = %v, want [debit credit]", order)
	}
	if got := vault.Balance("usdc"); !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("balance = %s, want 70", got)
	}
}

func TestExecuteRollsBackEveryResourceOnFailure(t *testing.T) {
	vault := NewVault()
	vault.Credit("usdc", decimal.NewFromInt(100))
	local := NewLocal(vault)

	boom := errors.New("boom")
	err := local.Execute(context.Background(), []Call{
		{Target: "vault", Op: "debit", Do: func(ctx context.Context) error {
			return vault.Debit("usdc", decimal.NewFromInt(40))
		}},
		{Target: "vault", Op: "fail", Do: func(ctx context.Context) error {
			return boom
		}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("execute error = %v, want %v", err, boom)
	}
	if got := vault.Balance("usdc"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance after rollback = %s, want 100", got)
	}
}

func TestExecuteSkipsNilCalls(t *testing.T) {
	local := NewLocal()
	if err := local.Execute(context.Background(), []Call{{Target: "noop", Op: "noop"}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestRegisterAddsRollbackCoverage(t *testing.T) {
	vault := NewVault()
	local := NewLocal()
	local.Register(vault)
	vault.Credit("usdc", decimal.NewFromInt(5))

	boom := errors.New("boom")
	err := local.Execute(context.Background(), []Call{
		{Target: "vault", Op: "credit", Do: func(ctx context.Context) error {
			vault.Credit("usdc", decimal.NewFromInt(95))
			return nil
		}},
		{Target: "vault", Op: "fail", Do: func(ctx context.Context) error {
			return boom
		}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("execute error = %v, want %v", err, boom)
	}
	if got := vault.Balance("usdc"); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance after rollback = %s, want 5", got)
	}
}
