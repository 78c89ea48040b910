package postgres

import (
	"context"
	"errors"
	"fmt"

	"association-treasury/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository. Executive sets are
// immutable after creation and stored in a side table to preserve
// declaration order.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts the account and its executive set, returning the
// allocated sequential id.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) (int64, error) {
	query := `INSERT INTO accounts (name, access_secret_hash, total_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	var id int64
	err := tx.QueryRow(ctx, query,
		a.Name, a.AccessSecretHash, a.TotalBalance, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}

	for i, identity := range a.Executives {
		_, err := tx.Exec(ctx,
			`INSERT INTO account_executives (account_id, identity, position) VALUES ($1, $2, $3)`,
			id, identity, i,
		)
		if err != nil {
			return 0, fmt.Errorf("insert executive %q: %w", identity, err)
		}
	}

	return id, nil
}

// GetByID fetches an account by id (non-locking read).
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.get(ctx, r.pool, id, false)
}

// GetByIDForUpdate fetches an account with pessimistic locking. This
// MUST be called within a transaction; the row lock serializes every
// mutation on the account.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	return r.get(ctx, tx, id, true)
}

func (r *AccountRepo) get(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Account, error) {
	query := `SELECT id, name, access_secret_hash, total_balance, created_at, updated_at
		FROM accounts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a := &domain.Account{}
	err := q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.AccessSecretHash, &a.TotalBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}

	executives, err := r.executivesFor(ctx, q, []int64{a.ID})
	if err != nil {
		return nil, err
	}
	a.Executives = executives[a.ID]

	return a, nil
}

// UpdateBalance sets the account balance within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id, newBalance int64) error {
	query := `UPDATE accounts SET total_balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, newBalance, id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %d", id)
	}
	return nil
}

// List returns one page of accounts ordered by id, plus the total count.
func (r *AccountRepo) List(ctx context.Context, limit, offset int) ([]domain.Account, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := `SELECT id, name, access_secret_hash, total_balance, created_at, updated_at
		FROM accounts ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.AccessSecretHash, &a.TotalBalance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accounts: %w", err)
	}

	if len(ids) > 0 {
		executives, err := r.executivesFor(ctx, r.pool, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range accounts {
			accounts[i].Executives = executives[accounts[i].ID]
		}
	}

	return accounts, total, nil
}

// executivesFor loads executive sets for the given accounts, preserving
// declaration order.
func (r *AccountRepo) executivesFor(ctx context.Context, q querier, ids []int64) (map[int64][]string, error) {
	query := `SELECT account_id, identity FROM account_executives
		WHERE account_id = ANY($1) ORDER BY account_id, position`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list executives: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]string, len(ids))
	for rows.Next() {
		var accountID int64
		var identity string
		if err := rows.Scan(&accountID, &identity); err != nil {
			return nil, fmt.Errorf("scan executive: %w", err)
		}
		out[accountID] = append(out[accountID], identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executives: %w", err)
	}
	return out, nil
}
