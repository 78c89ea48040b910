package service

import (
	"context"
	"fmt"

	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"
	"association-treasury/pkg/apperror"

	"github.com/rs/zerolog"
)

// DepositServiceImpl implements ports.DepositService: the member
// contribution ledger.
type DepositServiceImpl struct {
	accountRepo ports.AccountRepository
	depositRepo ports.DepositRepository
	outboxRepo  ports.OutboxRepository
	hashSvc     ports.HashService
	cache       ports.SummaryCache
	transactor  ports.DBTransactor
	topic       string
	log         zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(
	accountRepo ports.AccountRepository,
	depositRepo ports.DepositRepository,
	outboxRepo ports.OutboxRepository,
	hashSvc ports.HashService,
	cache ports.SummaryCache,
	transactor ports.DBTransactor,
	topic string,
	log zerolog.Logger,
) *DepositServiceImpl {
	return &DepositServiceImpl{
		accountRepo: accountRepo,
		depositRepo: depositRepo,
		outboxRepo:  outboxRepo,
		hashSvc:     hashSvc,
		cache:       cache,
		transactor:  transactor,
		topic:       topic,
		log:         log,
	}
}

// Deposit atomically increments the account balance and the depositor's
// cumulative record. The account row lock serializes it against every
// other mutation on the same account.
func (s *DepositServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidInput("deposit amount must be positive")
	}
	depositor, err := domain.NormalizeIdentity(req.Depositor)
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	newBalance := account.TotalBalance + req.Amount
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	depositorTotal, err := s.depositRepo.AddToRecord(ctx, dbTx, account.ID, depositor, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update deposit record: %w", err))
	}

	ev := domain.NewEvent(domain.EventDeposited, account.ID, depositor).
		WithAmount(req.Amount).
		WithNewBalance(newBalance)
	if err := stageEvent(ctx, dbTx, s.outboxRepo, s.topic, ev); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-commit: drop the stale read-side summary (best-effort).
	if err := s.cache.Invalidate(ctx, account.ID); err != nil {
		s.log.Warn().Err(err).Int64("account_id", account.ID).Msg("summary cache invalidation failed")
	}

	s.log.Info().
		Int64("account_id", account.ID).
		Str("depositor", depositor).
		Int64("amount", req.Amount).
		Int64("new_balance", newBalance).
		Msg("deposit recorded")

	return &ports.DepositResult{
		AccountID:      account.ID,
		NewBalance:     newBalance,
		DepositorTotal: depositorTotal,
		Amount:         req.Amount,
	}, nil
}

// DepositedBy returns the caller's cumulative deposit into an account,
// gated by the account access secret. A missing record reads as 0.
func (s *DepositServiceImpl) DepositedBy(ctx context.Context, accountID int64, caller, secret string) (int64, error) {
	identity, err := domain.NormalizeIdentity(caller)
	if err != nil {
		return 0, apperror.ErrInvalidInput(err.Error())
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return 0, apperror.ErrNotFound("account")
	}

	ok, err := s.hashSvc.Verify(secret, account.AccessSecretHash)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("verify access secret: %w", err))
	}
	if !ok {
		return 0, apperror.ErrInvalidSecret()
	}

	total, err := s.depositRepo.TotalFor(ctx, accountID, identity)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("deposit total: %w", err))
	}
	return total, nil
}
