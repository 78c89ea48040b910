package service

import (
	"context"
	"fmt"
	"time"

	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"
	"association-treasury/internal/core/quorum"
	"association-treasury/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService: the
// quorum-gated withdrawal state machine. Every mutation runs inside a
// database transaction holding the account row lock, which gives each
// account a total order over deposits, initiations, approvals, and
// executions.
type WithdrawalServiceImpl struct {
	accountRepo    ports.AccountRepository
	withdrawalRepo ports.WithdrawalRepository
	outboxRepo     ports.OutboxRepository
	cache          ports.SummaryCache
	transactor     ports.DBTransactor
	quorum         quorum.Policy
	topic          string
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	accountRepo ports.AccountRepository,
	withdrawalRepo ports.WithdrawalRepository,
	outboxRepo ports.OutboxRepository,
	cache ports.SummaryCache,
	transactor ports.DBTransactor,
	policy quorum.Policy,
	topic string,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		accountRepo:    accountRepo,
		withdrawalRepo: withdrawalRepo,
		outboxRepo:     outboxRepo,
		cache:          cache,
		transactor:     transactor,
		quorum:         policy,
		topic:          topic,
		log:            log,
	}
}

// Initiate opens a withdrawal request and allocates its order number.
// The amount is checked against the current balance, but funds are not
// reserved: several open requests may jointly exceed the balance, and
// that shortfall only surfaces at execution.
func (s *WithdrawalServiceImpl) Initiate(ctx context.Context, req ports.InitiateRequest) (*domain.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidInput("withdrawal amount must be positive")
	}
	requester, err := domain.NormalizeIdentity(req.Requester)
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.HasExecutive(requester) {
		return nil, apperror.ErrNotExecutive()
	}
	if req.Amount > account.TotalBalance {
		return nil, apperror.ErrInvalidInput(
			fmt.Sprintf("withdrawal amount exceeds balance of account %d", account.ID))
	}

	orderNo, err := s.withdrawalRepo.NextOrderNo(ctx, dbTx, account.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("allocate order number: %w", err))
	}

	now := time.Now().UTC()
	request := &domain.WithdrawalRequest{
		AccountID: account.ID,
		OrderNo:   orderNo,
		Amount:    req.Amount,
		Initiator: requester,
		Approvals: []string{},
		Executed:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.withdrawalRepo.Create(ctx, dbTx, request); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal request: %w", err))
	}

	ev := domain.NewEvent(domain.EventWithdrawalInitiated, account.ID, requester).
		WithOrderNo(orderNo).
		WithAmount(req.Amount)
	if err := stageEvent(ctx, dbTx, s.outboxRepo, s.topic, ev); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateSummary(ctx, account.ID)

	s.log.Info().
		Int64("account_id", account.ID).
		Int64("order_no", orderNo).
		Int64("amount", req.Amount).
		Str("initiator", requester).
		Msg("withdrawal initiated")

	return request, nil
}

// Approve records an executive's approval. Re-approval by the same
// executive is a no-op; the returned count is authoritative either way.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, req ports.ApprovalRequest) (int, error) {
	return s.mutateApprovals(ctx, req, domain.EventWithdrawalApproved, s.withdrawalRepo.AddApproval)
}

// Revert withdraws an executive's prior approval. Approvals become
// immutable once the request is executed.
func (s *WithdrawalServiceImpl) Revert(ctx context.Context, req ports.ApprovalRequest) (int, error) {
	return s.mutateApprovals(ctx, req, domain.EventWithdrawalReverted, s.withdrawalRepo.RemoveApproval)
}

func (s *WithdrawalServiceImpl) mutateApprovals(
	ctx context.Context,
	req ports.ApprovalRequest,
	eventType domain.EventType,
	mutate func(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error,
) (int, error) {
	executive, err := domain.NormalizeIdentity(req.Executive)
	if err != nil {
		return 0, apperror.ErrInvalidInput(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return 0, err
	}
	if !account.HasExecutive(executive) {
		return 0, apperror.ErrNotExecutive()
	}

	request, err := s.withdrawalRepo.GetForUpdate(ctx, dbTx, account.ID, req.OrderNo)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get withdrawal request: %w", err))
	}
	if request == nil {
		return 0, apperror.ErrNotFound("withdrawal request")
	}
	if request.Executed {
		return 0, apperror.ErrAlreadyExecuted(req.OrderNo)
	}

	if err := mutate(ctx, dbTx, account.ID, req.OrderNo, executive); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("mutate approvals: %w", err))
	}

	count, err := s.withdrawalRepo.CountApprovals(ctx, dbTx, account.ID, req.OrderNo)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("count approvals: %w", err))
	}

	ev := domain.NewEvent(eventType, account.ID, executive).
		WithOrderNo(req.OrderNo).
		WithApprovalCount(count)
	if err := stageEvent(ctx, dbTx, s.outboxRepo, s.topic, ev); err != nil {
		return 0, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateSummary(ctx, account.ID)

	s.log.Info().
		Int64("account_id", account.ID).
		Int64("order_no", req.OrderNo).
		Str("executive", executive).
		Int("approval_count", count).
		Str("event", string(eventType)).
		Msg("approval set updated")

	return count, nil
}

// Execute settles a quorum-complete request: debits the balance and
// marks the request executed, atomically and exactly once. The quorum
// threshold is recomputed here from the live executive count, and the
// balance check runs at execution time regardless of what held at
// initiation.
func (s *WithdrawalServiceImpl) Execute(ctx context.Context, req ports.ExecuteRequest) (*ports.ExecuteResult, error) {
	caller, err := domain.NormalizeIdentity(req.Caller)
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.lockAccount(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.HasExecutive(caller) {
		return nil, apperror.ErrNotExecutive()
	}

	request, err := s.withdrawalRepo.GetForUpdate(ctx, dbTx, account.ID, req.OrderNo)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrNotFound("withdrawal request")
	}
	if request.Executed {
		return nil, apperror.ErrAlreadyExecuted(req.OrderNo)
	}

	count, err := s.withdrawalRepo.CountApprovals(ctx, dbTx, account.ID, req.OrderNo)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count approvals: %w", err))
	}
	need := s.quorum(account.ExecutiveCount())
	if count < need {
		return nil, apperror.ErrQuorumNotMet(count, need)
	}

	if account.TotalBalance < request.Amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	newBalance := account.TotalBalance - request.Amount
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.withdrawalRepo.MarkExecuted(ctx, dbTx, account.ID, req.OrderNo); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark executed: %w", err))
	}

	ev := domain.NewEvent(domain.EventWithdrawalExecuted, account.ID, caller).
		WithOrderNo(req.OrderNo).
		WithAmount(request.Amount).
		WithNewBalance(newBalance)
	if err := stageEvent(ctx, dbTx, s.outboxRepo, s.topic, ev); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateSummary(ctx, account.ID)

	s.log.Info().
		Int64("account_id", account.ID).
		Int64("order_no", req.OrderNo).
		Int64("amount", request.Amount).
		Int64("new_balance", newBalance).
		Str("caller", caller).
		Msg("withdrawal executed")

	return &ports.ExecuteResult{
		AccountID:  account.ID,
		OrderNo:    req.OrderNo,
		Amount:     request.Amount,
		NewBalance: newBalance,
	}, nil
}

// Status reads one request with its approval set, without locking. The
// snapshot may be stale under concurrent approvals.
func (s *WithdrawalServiceImpl) Status(ctx context.Context, accountID, orderNo int64) (*domain.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.Get(ctx, accountID, orderNo)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrNotFound("withdrawal request")
	}
	return request, nil
}

// lockAccount fetches the account row FOR UPDATE, translating a missing
// row into NotFound.
func (s *WithdrawalServiceImpl) lockAccount(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

func (s *WithdrawalServiceImpl) invalidateSummary(ctx context.Context, accountID int64) {
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.log.Warn().Err(err).Int64("account_id", accountID).Msg("summary cache invalidation failed")
	}
}
