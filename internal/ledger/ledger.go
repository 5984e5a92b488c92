// Package ledger implements the per-user token balance operations. Every
// balance mutation in the service goes through this package; nothing else
// touches the users table.
package ledger

import (
	"context"
	"fmt"

	"stargen/internal/domain"
	"stargen/internal/infra"
)

// TokenLedger provides atomic-enough balance operations against Postgres.
//
// The read-modify-write contract here is deliberately not isolated across
// concurrent calls for the same owner. Concurrent deductions can race and
// settle on either order's result; the floor at zero is enforced in SQL.
// This mirrors the documented behavior of the hosted backend and is an
// accepted consistency gap, not a bug to fix silently.
type TokenLedger struct {
	db              infra.SQLExecutor
	logger          infra.Logger
	startingBalance int
}

// New constructs a TokenLedger with the given first-use grant.
func New(db infra.SQLExecutor, logger infra.Logger, startingBalance int) *TokenLedger {
	return &TokenLedger{db: db, logger: logger, startingBalance: startingBalance}
}

// Balance returns the owner's current balance. A missing row is treated
// as first use: the starting grant is inserted and returned. If the
// backing store is unreachable the starting balance is returned together
// with a wrapped domain.ErrLedgerUnavailable so callers can proceed
// best-effort instead of blocking the user.
func (l *TokenLedger) Balance(ctx context.Context, ownerID int64) (int, error) {
	row := l.db.QueryRow(ctx, `SELECT balance FROM users WHERE telegram_id = $1;`, ownerID)
	var balance int
	err := row.Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !infra.IsNoRows(err) {
		l.logger.Warn().Err(err).Int64("owner_id", ownerID).Msg("ledger: balance read failed")
		return l.startingBalance, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return l.grant(ctx, ownerID)
}

// Deduct lowers the balance by amount, flooring at zero, and returns the
// new balance.
func (l *TokenLedger) Deduct(ctx context.Context, ownerID int64, amount int) (int, error) {
	return l.adjust(ctx, ownerID, -amount)
}

// Credit raises the balance by amount and returns the new balance. Used
// for purchase top-ups and for compensation when a workflow fails after
// pre-authorization.
func (l *TokenLedger) Credit(ctx context.Context, ownerID int64, amount int) (int, error) {
	return l.adjust(ctx, ownerID, amount)
}

func (l *TokenLedger) adjust(ctx context.Context, ownerID int64, delta int) (int, error) {
	row := l.db.QueryRow(ctx, `
UPDATE users
SET balance = GREATEST(0, balance + $2),
    updated_at = NOW()
WHERE telegram_id = $1
RETURNING balance;
`, ownerID, delta)
	var balance int
	err := row.Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if infra.IsNoRows(err) {
		// First touch for this owner: apply the delta to the starting grant.
		initial := l.startingBalance + delta
		if initial < 0 {
			initial = 0
		}
		return l.insert(ctx, ownerID, initial)
	}
	l.logger.Warn().Err(err).Int64("owner_id", ownerID).Int("delta", delta).Msg("ledger: balance update failed")
	return l.startingBalance, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
}

func (l *TokenLedger) grant(ctx context.Context, ownerID int64) (int, error) {
	return l.insert(ctx, ownerID, l.startingBalance)
}

func (l *TokenLedger) insert(ctx context.Context, ownerID int64, balance int) (int, error) {
	row := l.db.QueryRow(ctx, `
INSERT INTO users (telegram_id, balance)
VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE SET updated_at = NOW()
RETURNING balance;
`, ownerID, balance)
	var stored int
	if err := row.Scan(&stored); err != nil {
		l.logger.Warn().Err(err).Int64("owner_id", ownerID).Msg("ledger: first-use grant failed")
		return l.startingBalance, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return stored, nil
}
