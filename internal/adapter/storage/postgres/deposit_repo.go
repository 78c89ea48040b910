package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DepositRepo implements ports.DepositRepository. One row per
// (account, depositor) pair holding the cumulative total.
type DepositRepo struct {
	pool Pool
}

// NewDepositRepo creates a new DepositRepo.
func NewDepositRepo(pool Pool) *DepositRepo {
	return &DepositRepo{pool: pool}
}

// AddToRecord upserts the depositor's cumulative record and returns the
// new total. Must run inside the transaction holding the account lock.
func (r *DepositRepo) AddToRecord(ctx context.Context, tx pgx.Tx, accountID int64, depositor string, amount int64) (int64, error) {
	query := `INSERT INTO deposit_records (account_id, depositor, total, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id, depositor)
		DO UPDATE SET total = deposit_records.total + EXCLUDED.total, updated_at = NOW()
		RETURNING total`

	var total int64
	if err := tx.QueryRow(ctx, query, accountID, depositor, amount).Scan(&total); err != nil {
		return 0, fmt.Errorf("upsert deposit record: %w", err)
	}
	return total, nil
}

// TotalFor returns the depositor's cumulative total. A missing record
// reads as 0.
func (r *DepositRepo) TotalFor(ctx context.Context, accountID int64, depositor string) (int64, error) {
	query := `SELECT total FROM deposit_records WHERE account_id = $1 AND depositor = $2`

	var total int64
	err := r.pool.QueryRow(ctx, query, accountID, depositor).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get deposit total: %w", err)
	}
	return total, nil
}
