package ports

import (
	"context"
	"time"

	"association-treasury/internal/core/domain"
)

// HashService handles account access secret hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService issues and validates caller session tokens. The HTTP
// adapter is the trust boundary: the identity placed in a token is
// assumed to have been verified upstream.
type TokenService interface {
	Generate(identity string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed session claims.
type TokenClaims struct {
	Identity string
}

// EventPublisher delivers a staged ledger event to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// SummaryCache is the read-side cache of member-facing account
// summaries. Mutating operations invalidate; lookups fall back to the
// database on miss.
type SummaryCache interface {
	Get(ctx context.Context, accountID int64) ([]byte, error) // nil on miss
	Set(ctx context.Context, accountID int64, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, accountID int64) error
}

// --- Service Ports (Business Logic) ---

// AccountService is the account registry: creation, lookup, listing,
// and the secret-gated member summary view.
type AccountService interface {
	Create(ctx context.Context, req CreateAccountRequest) (*domain.Account, error)
	Get(ctx context.Context, id int64) (*domain.Account, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Account, int64, error)
	Summary(ctx context.Context, req SummaryRequest) (*AccountSummary, error)
}

// CreateAccountRequest holds validated input for account creation.
type CreateAccountRequest struct {
	Name         string
	Executives   []string
	AccessSecret string
}

// SummaryRequest is a member-facing, secret-gated read.
type SummaryRequest struct {
	AccountID int64
	Caller    string
	Secret    string
}

// AccountSummary is the member view: balance plus approval progress of
// every withdrawal request, and the caller's own cumulative deposit.
type AccountSummary struct {
	AccountID      int64              `json:"account_id"`
	Name           string             `json:"name"`
	TotalBalance   int64              `json:"total_balance"`
	ExecutiveCount int                `json:"executive_count"`
	Withdrawals    []WithdrawalStatus `json:"withdrawals"`
	CallerDeposit  int64              `json:"caller_deposit"`
}

// WithdrawalStatus is one request's "X of Y" progress line.
type WithdrawalStatus struct {
	OrderNo       int64 `json:"order_no"`
	Amount        int64 `json:"amount"`
	ApprovalCount int   `json:"approval_count"`
	Executed      bool  `json:"executed"`
}

// DepositService records member contributions.
type DepositService interface {
	Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error)
	// DepositedBy returns the caller's cumulative deposit into the
	// account, gated by the account access secret.
	DepositedBy(ctx context.Context, accountID int64, caller, secret string) (int64, error)
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	AccountID int64
	Depositor string
	Amount    int64
}

// DepositResult reports the post-deposit balances.
type DepositResult struct {
	AccountID      int64 `json:"account_id"`
	NewBalance     int64 `json:"new_balance"`
	DepositorTotal int64 `json:"depositor_total"`
	Amount         int64 `json:"amount"`
}

// WithdrawalService is the quorum-gated withdrawal state machine.
type WithdrawalService interface {
	Initiate(ctx context.Context, req InitiateRequest) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, req ApprovalRequest) (int, error)
	Revert(ctx context.Context, req ApprovalRequest) (int, error)
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	// Status returns one request's current approval progress.
	Status(ctx context.Context, accountID, orderNo int64) (*domain.WithdrawalRequest, error)
}

// InitiateRequest holds validated input for withdrawal initiation.
type InitiateRequest struct {
	AccountID int64
	Requester string
	Amount    int64
}

// ApprovalRequest targets one request with an executive's approval or
// reversal.
type ApprovalRequest struct {
	AccountID int64
	OrderNo   int64
	Executive string
}

// ExecuteRequest holds input for executing a quorum-complete request.
type ExecuteRequest struct {
	AccountID int64
	OrderNo   int64
	Caller    string
}

// ExecuteResult reports the executed transfer.
type ExecuteResult struct {
	AccountID  int64 `json:"account_id"`
	OrderNo    int64 `json:"order_no"`
	Amount     int64 `json:"amount"`
	NewBalance int64 `json:"new_balance"`
}
