package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

// LedgerRepository owns every mutation of users.coins. Each balance change is
// written together with its coin_transactions row in a single transaction.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Debit atomically subtracts amount when the balance covers it. It reports
// false without error when the balance is insufficient or the user is gone.
func (r *LedgerRepository) Debit(ctx context.Context, userID int64, amount int, txType models.TransactionType, reference string) (bool, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
UPDATE users SET coins = coins - ?, total_coins_spent = total_coins_spent + ?, updated_at = ?
WHERE id = ? AND coins >= ?`
	res, err := tx.ExecContext(ctx, query, amount, amount, now, userID, amount)
	if err != nil {
		return false, fmt.Errorf("debit coins: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if err := insertTransaction(ctx, tx, userID, txType, -amount, reference, now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit debit: %w", err)
	}
	return true, nil
}

// Refund returns coins taken by an earlier debit. The reference makes it
// idempotent: a second call with the same reference reports false.
func (r *LedgerRepository) Refund(ctx context.Context, userID int64, amount int, reference string) (bool, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	done, err := referenceExists(ctx, tx, reference)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	const query = `
UPDATE users SET coins = coins + ?, total_coins_spent = total_coins_spent - ?, updated_at = ?
WHERE id = ?`
	res, err := tx.ExecContext(ctx, query, amount, amount, now, userID)
	if err != nil {
		return false, fmt.Errorf("refund coins: %w", err)
	}
	if err := expectAffected(res, ErrUserNotFound); err != nil {
		return false, err
	}
	if err := insertTransaction(ctx, tx, userID, models.TxFortuneRefund, amount, reference, now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit refund: %w", err)
	}
	return true, nil
}

// Credit adds earned coins (admin grants and similar). Like Refund it is
// idempotent per reference.
func (r *LedgerRepository) Credit(ctx context.Context, userID int64, amount int, txType models.TransactionType, reference string) (bool, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	done, err := referenceExists(ctx, tx, reference)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	const query = `
UPDATE users SET coins = coins + ?, total_coins_earned = total_coins_earned + ?, updated_at = ?
WHERE id = ?`
	res, err := tx.ExecContext(ctx, query, amount, amount, now, userID)
	if err != nil {
		return false, fmt.Errorf("credit coins: %w", err)
	}
	if err := expectAffected(res, ErrUserNotFound); err != nil {
		return false, err
	}
	if err := insertTransaction(ctx, tx, userID, txType, amount, reference, now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit credit: %w", err)
	}
	return true, nil
}

// ClaimDaily credits the daily bonus unless the user already claimed on day.
// The day check and the credit are one conditional update, so concurrent
// claims for the same day grant at most once.
func (r *LedgerRepository) ClaimDaily(ctx context.Context, userID int64, amount int, day string, now time.Time) (bool, error) {
	now = now.UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
UPDATE users SET coins = coins + ?, total_coins_earned = total_coins_earned + ?, last_daily_bonus = ?, last_bonus_day = ?, updated_at = ?
WHERE id = ? AND (last_bonus_day IS NULL OR last_bonus_day <> ?)`
	res, err := tx.ExecContext(ctx, query, amount, amount, now, day, now, userID, day)
	if err != nil {
		return false, fmt.Errorf("claim daily bonus: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	reference := fmt.Sprintf("daily:%d:%s", userID, day)
	if err := insertTransaction(ctx, tx, userID, models.TxDailyBonus, amount, reference, now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit daily bonus: %w", err)
	}
	return true, nil
}

// History returns the user's ledger entries, newest first.
func (r *LedgerRepository) History(ctx context.Context, userID int64, limit, offset int) ([]models.CoinTransaction, error) {
	const query = `
SELECT id, user_id, tx_type, amount, reference, created_at
FROM coin_transactions WHERE user_id = ?
ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.CoinTransaction
	for rows.Next() {
		var t models.CoinTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindByReference returns nil, nil when no entry carries the reference.
func (r *LedgerRepository) FindByReference(ctx context.Context, reference string) (*models.CoinTransaction, error) {
	const query = `SELECT id, user_id, tx_type, amount, reference, created_at FROM coin_transactions WHERE reference = ?`
	var t models.CoinTransaction
	err := r.db.QueryRowContext(ctx, query, reference).Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Reference, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &t, nil
}

func referenceExists(ctx context.Context, tx *sql.Tx, reference string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM coin_transactions WHERE reference = ?`, reference).Scan(&n); err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return n > 0, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, userID int64, txType models.TransactionType, amount int, reference string, at time.Time) error {
	const query = `
INSERT INTO coin_transactions (user_id, tx_type, amount, reference, created_at)
VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, userID, txType, amount, reference, at); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
