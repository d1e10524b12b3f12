package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"skillzone-service/internal/domain"
)

func TestLedgerAccountStartsAtRookie(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.ledger.Account(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Balance != 0 || account.Level != domain.LevelRookie {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestLedgerDebitNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.ledger.Credit(ctx, "u1", 25); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := env.ledger.Debit(ctx, "u1", 26); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	balance, err := env.ledger.Debit(ctx, "u1", 25)
	if err != nil || balance != 0 {
		t.Fatalf("expected exact debit to reach 0, balance=%d err=%v", balance, err)
	}
}

func TestLedgerRejectsNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.ledger.Credit(ctx, "u1", -5); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount on credit, got %v", err)
	}
	if _, err := env.ledger.Debit(ctx, "u1", -5); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount on debit, got %v", err)
	}
}

func TestLedgerConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.ledger.Credit(ctx, "u1", 10); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	account, _ := env.ledger.Account(ctx, "u1")
	if account.Balance != 500 || account.Level != domain.LevelMaster {
		t.Fatalf("expected 500 at MASTER, got %+v", account)
	}
}
