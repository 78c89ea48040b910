package ports

import (
	"context"

	"association-treasury/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for association accounts.
// Methods accepting pgx.Tx are used inside transaction blocks; fetching
// the account row FOR UPDATE is what serializes all mutations on one
// account.
type AccountRepository interface {
	// Create inserts the account and its executive set, returning the
	// allocated sequential account id.
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, newBalance int64) error
	// List returns a snapshot page of accounts plus the total count.
	List(ctx context.Context, limit, offset int) ([]domain.Account, int64, error)
}

// DepositRepository defines persistence for cumulative member deposits.
type DepositRepository interface {
	// AddToRecord upserts the (account, depositor) record, incrementing
	// its cumulative total by amount, and returns the new total.
	AddToRecord(ctx context.Context, tx pgx.Tx, accountID int64, depositor string, amount int64) (int64, error)
	// TotalFor returns the cumulative deposit of one identity.
	// A missing record is 0, not an error.
	TotalFor(ctx context.Context, accountID int64, depositor string) (int64, error)
}

// WithdrawalRepository defines persistence for withdrawal requests and
// their approval sets.
type WithdrawalRepository interface {
	// NextOrderNo allocates the next per-account order number. Must be
	// called under the account row lock.
	NextOrderNo(ctx context.Context, tx pgx.Tx, accountID int64) (int64, error)
	Create(ctx context.Context, tx pgx.Tx, req *domain.WithdrawalRequest) error
	// Get loads a request with its approval set. Returns nil, nil when
	// the order number is unknown.
	Get(ctx context.Context, accountID, orderNo int64) (*domain.WithdrawalRequest, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) (*domain.WithdrawalRequest, error)
	ListByAccount(ctx context.Context, accountID int64) ([]domain.WithdrawalRequest, error)
	// AddApproval inserts an approval; re-approval by the same
	// executive is a no-op.
	AddApproval(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error
	// RemoveApproval deletes an approval; absence is a no-op.
	RemoveApproval(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error
	CountApprovals(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) (int, error)
	MarkExecuted(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) error
}

// OutboxRepository stages ledger events for at-least-once Kafka delivery.
type OutboxRepository interface {
	Create(ctx context.Context, tx pgx.Tx, msg *domain.OutboxMessage) error
	ListPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	// MarkFailed dead-letters a message after exhausting retries.
	MarkFailed(ctx context.Context, id int64) error
	IncrementAttempts(ctx context.Context, id int64) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
