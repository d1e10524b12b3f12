package app

import (
	"context"

	"skillzone-service/internal/domain"
)

// PointsLedger owns every balance mutation.
type PointsLedger struct {
	store Store
}

func NewPointsLedger(store Store) *PointsLedger {
	return &PointsLedger{store: store}
}

func ledgerLockKey(userID string) string {
	return "ledger:" + userID
}

// Credit adds amount to the balance of userID and returns the new balance.
func (l *PointsLedger) Credit(ctx context.Context, userID string, amount int) (int, error) {
	var balance int
	err := l.store.WithinTx(ctx, ledgerLockKey(userID), func(ctx context.Context, tx Tx) error {
		var err error
		balance, err = credit(ctx, tx, userID, amount)
		return err
	})
	return balance, err
}

// Debit removes amount from the balance of userID. It never leaves a negative balance.
func (l *PointsLedger) Debit(ctx context.Context, userID string, amount int) (int, error) {
	var balance int
	err := l.store.WithinTx(ctx, ledgerLockKey(userID), func(ctx context.Context, tx Tx) error {
		var err error
		balance, err = debit(ctx, tx, userID, amount)
		return err
	})
	return balance, err
}

// Account returns the balance and level of userID, initializing the account on first use.
func (l *PointsLedger) Account(ctx context.Context, userID string) (domain.Account, error) {
	var balance int
	err := l.store.WithinTx(ctx, ledgerLockKey(userID), func(ctx context.Context, tx Tx) error {
		if err := tx.EnsureAccount(ctx, userID); err != nil {
			return err
		}
		var err error
		balance, _, err = tx.Balance(ctx, userID)
		return err
	})
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{UserID: userID, Balance: balance, Level: domain.LevelFor(balance)}, nil
}

func credit(ctx context.Context, tx Tx, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	if err := tx.EnsureAccount(ctx, userID); err != nil {
		return 0, err
	}
	return tx.AddPoints(ctx, userID, amount)
}

func debit(ctx context.Context, tx Tx, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	if err := tx.EnsureAccount(ctx, userID); err != nil {
		return 0, err
	}
	return tx.AddPoints(ctx, userID, -amount)
}
