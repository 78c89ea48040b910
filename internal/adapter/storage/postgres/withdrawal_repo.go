package postgres

import (
	"context"
	"errors"
	"fmt"

	"association-treasury/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository. Requests are
// keyed (account_id, order_no); approvals live in a side table keyed by
// executive, which makes approve idempotent and revert a plain delete.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// NextOrderNo allocates the next per-account order number. Safe only
// under the account row lock.
func (r *WithdrawalRepo) NextOrderNo(ctx context.Context, tx pgx.Tx, accountID int64) (int64, error) {
	query := `SELECT COALESCE(MAX(order_no), 0) + 1 FROM withdrawal_requests WHERE account_id = $1`

	var next int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return next, nil
}

// Create inserts a new withdrawal request.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, req *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (account_id, order_no, amount, initiator, executed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		req.AccountID, req.OrderNo, req.Amount, req.Initiator,
		req.Executed, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

// Get fetches one request by (account, order number), non-locking.
func (r *WithdrawalRepo) Get(ctx context.Context, accountID, orderNo int64) (*domain.WithdrawalRequest, error) {
	return r.get(ctx, r.pool, accountID, orderNo, false)
}

// GetForUpdate fetches one request with pessimistic locking. This MUST
// be called within a transaction.
func (r *WithdrawalRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) (*domain.WithdrawalRequest, error) {
	return r.get(ctx, tx, accountID, orderNo, true)
}

func (r *WithdrawalRepo) get(ctx context.Context, q querier, accountID, orderNo int64, forUpdate bool) (*domain.WithdrawalRequest, error) {
	query := `SELECT account_id, order_no, amount, initiator, executed, created_at, updated_at
		FROM withdrawal_requests WHERE account_id = $1 AND order_no = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	w := &domain.WithdrawalRequest{}
	err := q.QueryRow(ctx, query, accountID, orderNo).Scan(
		&w.AccountID, &w.OrderNo, &w.Amount, &w.Initiator,
		&w.Executed, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal request: %w", err)
	}

	approvals, err := r.approvalsFor(ctx, q, accountID, orderNo)
	if err != nil {
		return nil, err
	}
	w.Approvals = approvals

	return w, nil
}

// ListByAccount returns every request of the account in order-number
// order, approvals included.
func (r *WithdrawalRepo) ListByAccount(ctx context.Context, accountID int64) ([]domain.WithdrawalRequest, error) {
	query := `SELECT account_id, order_no, amount, initiator, executed, created_at, updated_at
		FROM withdrawal_requests WHERE account_id = $1 ORDER BY order_no`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	requests := make([]domain.WithdrawalRequest, 0)
	for rows.Next() {
		var w domain.WithdrawalRequest
		if err := rows.Scan(&w.AccountID, &w.OrderNo, &w.Amount, &w.Initiator, &w.Executed, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal request: %w", err)
		}
		w.Approvals = []string{}
		requests = append(requests, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal requests: %w", err)
	}

	if len(requests) == 0 {
		return requests, nil
	}

	approvalQuery := `SELECT order_no, executive FROM withdrawal_approvals
		WHERE account_id = $1 ORDER BY order_no, created_at`

	approvalRows, err := r.pool.Query(ctx, approvalQuery, accountID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer approvalRows.Close()

	byOrder := make(map[int64][]string)
	for approvalRows.Next() {
		var orderNo int64
		var executive string
		if err := approvalRows.Scan(&orderNo, &executive); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		byOrder[orderNo] = append(byOrder[orderNo], executive)
	}
	if err := approvalRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}

	for i := range requests {
		if approvals, ok := byOrder[requests[i].OrderNo]; ok {
			requests[i].Approvals = approvals
		}
	}

	return requests, nil
}

// AddApproval records the executive's approval. Re-approval is a no-op.
func (r *WithdrawalRepo) AddApproval(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error {
	query := `INSERT INTO withdrawal_approvals (account_id, order_no, executive, created_at)
		VALUES ($1, $2, $3, NOW()) ON CONFLICT (account_id, order_no, executive) DO NOTHING`

	if _, err := tx.Exec(ctx, query, accountID, orderNo, executive); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// RemoveApproval deletes the executive's approval. Removing an absent
// approval is a no-op.
func (r *WithdrawalRepo) RemoveApproval(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error {
	query := `DELETE FROM withdrawal_approvals WHERE account_id = $1 AND order_no = $2 AND executive = $3`

	if _, err := tx.Exec(ctx, query, accountID, orderNo, executive); err != nil {
		return fmt.Errorf("delete approval: %w", err)
	}
	return nil
}

// CountApprovals returns the number of distinct approving executives.
func (r *WithdrawalRepo) CountApprovals(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) (int, error) {
	query := `SELECT COUNT(*) FROM withdrawal_approvals WHERE account_id = $1 AND order_no = $2`

	var count int
	if err := tx.QueryRow(ctx, query, accountID, orderNo).Scan(&count); err != nil {
		return 0, fmt.Errorf("count approvals: %w", err)
	}
	return count, nil
}

// MarkExecuted flips the request to its terminal state. The executed
// guard makes the flip happen at most once.
func (r *WithdrawalRepo) MarkExecuted(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) error {
	query := `UPDATE withdrawal_requests SET executed = TRUE, updated_at = NOW()
		WHERE account_id = $1 AND order_no = $2 AND executed = FALSE`

	tag, err := tx.Exec(ctx, query, accountID, orderNo)
	if err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal request %d/%d missing or already executed", accountID, orderNo)
	}
	return nil
}

// approvalsFor loads the approval set of one request.
func (r *WithdrawalRepo) approvalsFor(ctx context.Context, q querier, accountID, orderNo int64) ([]string, error) {
	query := `SELECT executive FROM withdrawal_approvals
		WHERE account_id = $1 AND order_no = $2 ORDER BY created_at`

	rows, err := q.Query(ctx, query, accountID, orderNo)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	approvals := make([]string, 0)
	for rows.Next() {
		var executive string
		if err := rows.Scan(&executive); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, executive)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return approvals, nil
}
