package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"
	"association-treasury/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	summaryCacheTTL = 30 * time.Second

	defaultPageSize = 20
	maxPageSize     = 100
)

// AccountServiceImpl implements ports.AccountService: the registry of
// association accounts.
type AccountServiceImpl struct {
	accountRepo    ports.AccountRepository
	depositRepo    ports.DepositRepository
	withdrawalRepo ports.WithdrawalRepository
	outboxRepo     ports.OutboxRepository
	hashSvc        ports.HashService
	cache          ports.SummaryCache
	transactor     ports.DBTransactor
	topic          string
	log            zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(
	accountRepo ports.AccountRepository,
	depositRepo ports.DepositRepository,
	withdrawalRepo ports.WithdrawalRepository,
	outboxRepo ports.OutboxRepository,
	hashSvc ports.HashService,
	cache ports.SummaryCache,
	transactor ports.DBTransactor,
	topic string,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo:    accountRepo,
		depositRepo:    depositRepo,
		withdrawalRepo: withdrawalRepo,
		outboxRepo:     outboxRepo,
		hashSvc:        hashSvc,
		cache:          cache,
		transactor:     transactor,
		topic:          topic,
		log:            log,
	}
}

// Create registers a new association account with a zero balance and a
// fixed executive set.
func (s *AccountServiceImpl) Create(ctx context.Context, req ports.CreateAccountRequest) (*domain.Account, error) {
	if req.Name == "" {
		return nil, apperror.ErrInvalidInput("account name must not be empty")
	}
	executives, err := domain.NormalizeExecutives(req.Executives)
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}
	if req.AccessSecret == "" {
		return nil, apperror.ErrInvalidInput("access secret must not be empty")
	}

	secretHash, err := s.hashSvc.Hash(req.AccessSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash access secret: %w", err))
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Name:             req.Name,
		Executives:       executives,
		AccessSecretHash: secretHash,
		TotalBalance:     0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	id, err := s.accountRepo.Create(ctx, dbTx, account)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}
	account.ID = id

	ev := domain.NewEvent(domain.EventAccountCreated, id, "")
	if err := stageEvent(ctx, dbTx, s.outboxRepo, s.topic, ev); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Int64("account_id", id).
		Str("name", account.Name).
		Int("executives", len(executives)).
		Msg("association account created")

	return account, nil
}

// Get returns one account by id.
func (s *AccountServiceImpl) Get(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// List returns a snapshot page of all accounts plus the total count.
func (s *AccountServiceImpl) List(ctx context.Context, page, pageSize int) ([]domain.Account, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	accounts, total, err := s.accountRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list accounts: %w", err))
	}
	return accounts, total, nil
}

// cachedSummary is the shared (caller-independent) portion of the
// member summary.
type cachedSummary struct {
	AccountID      int64                    `json:"account_id"`
	Name           string                   `json:"name"`
	TotalBalance   int64                    `json:"total_balance"`
	ExecutiveCount int                      `json:"executive_count"`
	Withdrawals    []ports.WithdrawalStatus `json:"withdrawals"`
}

// Summary is the secret-gated member view of an account: balance,
// per-request approval progress, and the caller's cumulative deposit.
func (s *AccountServiceImpl) Summary(ctx context.Context, req ports.SummaryRequest) (*ports.AccountSummary, error) {
	caller, err := domain.NormalizeIdentity(req.Caller)
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	ok, err := s.hashSvc.Verify(req.Secret, account.AccessSecretHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify access secret: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidSecret()
	}

	shared, err := s.sharedSummary(ctx, account)
	if err != nil {
		return nil, err
	}

	callerDeposit, err := s.depositRepo.TotalFor(ctx, account.ID, caller)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("caller deposit: %w", err))
	}

	return &ports.AccountSummary{
		AccountID:      shared.AccountID,
		Name:           shared.Name,
		TotalBalance:   shared.TotalBalance,
		ExecutiveCount: shared.ExecutiveCount,
		Withdrawals:    shared.Withdrawals,
		CallerDeposit:  callerDeposit,
	}, nil
}

// sharedSummary serves the caller-independent summary portion through
// the Redis cache, falling back to the database on miss.
func (s *AccountServiceImpl) sharedSummary(ctx context.Context, account *domain.Account) (*cachedSummary, error) {
	if payload, err := s.cache.Get(ctx, account.ID); err != nil {
		s.log.Warn().Err(err).Int64("account_id", account.ID).Msg("summary cache read failed, falling through to DB")
	} else if payload != nil {
		var cached cachedSummary
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
		s.log.Warn().Int64("account_id", account.ID).Msg("discarding unreadable summary cache entry")
	}

	withdrawals, err := s.withdrawalRepo.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}

	statuses := make([]ports.WithdrawalStatus, 0, len(withdrawals))
	for _, w := range withdrawals {
		statuses = append(statuses, ports.WithdrawalStatus{
			OrderNo:       w.OrderNo,
			Amount:        w.Amount,
			ApprovalCount: w.ApprovalCount(),
			Executed:      w.Executed,
		})
	}

	shared := &cachedSummary{
		AccountID:      account.ID,
		Name:           account.Name,
		TotalBalance:   account.TotalBalance,
		ExecutiveCount: account.ExecutiveCount(),
		Withdrawals:    statuses,
	}

	if payload, err := json.Marshal(shared); err == nil {
		if err := s.cache.Set(ctx, account.ID, payload, summaryCacheTTL); err != nil {
			s.log.Warn().Err(err).Int64("account_id", account.ID).Msg("summary cache write failed")
		}
	}

	return shared, nil
}
