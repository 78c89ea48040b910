package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"association-treasury/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[int64]*domain.Account
	nextID   int64
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[int64]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, tx pgx.Tx, account *domain.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *account
	stored.ID = r.nextID
	stored.Executives = append([]string(nil), account.Executives...)
	r.accounts[stored.ID] = &stored
	return stored.ID, nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	cp.Executives = append([]string(nil), a.Executives...)
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, newBalance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.TotalBalance = newBalance
	return nil
}

func (r *inMemoryAccountRepo) List(ctx context.Context, limit, offset int) ([]domain.Account, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := int64(len(ids))
	if offset >= len(ids) {
		return []domain.Account{}, total, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	page := make([]domain.Account, 0, end-offset)
	for _, id := range ids[offset:end] {
		cp := *r.accounts[id]
		cp.Executives = append([]string(nil), cp.Executives...)
		page = append(page, cp)
	}
	return page, total, nil
}

// --- In-Memory Deposit Repo ---

type depositKey struct {
	accountID int64
	depositor string
}

type inMemoryDepositRepo struct {
	mu     sync.RWMutex
	totals map[depositKey]int64
}

func newInMemoryDepositRepo() *inMemoryDepositRepo {
	return &inMemoryDepositRepo{totals: make(map[depositKey]int64)}
}

func (r *inMemoryDepositRepo) AddToRecord(ctx context.Context, tx pgx.Tx, accountID int64, depositor string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := depositKey{accountID, depositor}
	r.totals[key] += amount
	return r.totals[key], nil
}

func (r *inMemoryDepositRepo) TotalFor(ctx context.Context, accountID int64, depositor string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totals[depositKey{accountID, depositor}], nil
}

// --- In-Memory Withdrawal Repo ---

type withdrawalKey struct {
	accountID int64
	orderNo   int64
}

type inMemoryWithdrawalRepo struct {
	mu        sync.RWMutex
	requests  map[withdrawalKey]*domain.WithdrawalRequest
	approvals map[withdrawalKey]map[string]struct{}
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{
		requests:  make(map[withdrawalKey]*domain.WithdrawalRequest),
		approvals: make(map[withdrawalKey]map[string]struct{}),
	}
}

func (r *inMemoryWithdrawalRepo) NextOrderNo(ctx context.Context, tx pgx.Tx, accountID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max int64
	for key := range r.requests {
		if key.accountID == accountID && key.orderNo > max {
			max = key.orderNo
		}
	}
	return max + 1, nil
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, req *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := withdrawalKey{req.AccountID, req.OrderNo}
	if _, exists := r.requests[key]; exists {
		return fmt.Errorf("order number %d already allocated", req.OrderNo)
	}
	cp := *req
	r.requests[key] = &cp
	r.approvals[key] = make(map[string]struct{})
	return nil
}

func (r *inMemoryWithdrawalRepo) get(key withdrawalKey) *domain.WithdrawalRequest {
	req, ok := r.requests[key]
	if !ok {
		return nil
	}
	cp := *req
	cp.Approvals = make([]string, 0, len(r.approvals[key]))
	for exec := range r.approvals[key] {
		cp.Approvals = append(cp.Approvals, exec)
	}
	sort.Strings(cp.Approvals)
	return &cp
}

func (r *inMemoryWithdrawalRepo) Get(ctx context.Context, accountID, orderNo int64) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(withdrawalKey{accountID, orderNo}), nil
}

func (r *inMemoryWithdrawalRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) (*domain.WithdrawalRequest, error) {
	return r.Get(ctx, accountID, orderNo)
}

func (r *inMemoryWithdrawalRepo) ListByAccount(ctx context.Context, accountID int64) ([]domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []withdrawalKey
	for key := range r.requests {
		if key.accountID == accountID {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].orderNo < keys[j].orderNo })

	out := make([]domain.WithdrawalRequest, 0, len(keys))
	for _, key := range keys {
		out = append(out, *r.get(key))
	}
	return out, nil
}

func (r *inMemoryWithdrawalRepo) AddApproval(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := withdrawalKey{accountID, orderNo}
	if _, ok := r.requests[key]; !ok {
		return fmt.Errorf("withdrawal request not found")
	}
	r.approvals[key][executive] = struct{}{}
	return nil
}

func (r *inMemoryWithdrawalRepo) RemoveApproval(ctx context.Context, tx pgx.Tx, accountID, orderNo int64, executive string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := withdrawalKey{accountID, orderNo}
	if _, ok := r.requests[key]; !ok {
		return fmt.Errorf("withdrawal request not found")
	}
	delete(r.approvals[key], executive)
	return nil
}

func (r *inMemoryWithdrawalRepo) CountApprovals(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.approvals[withdrawalKey{accountID, orderNo}]), nil
}

func (r *inMemoryWithdrawalRepo) MarkExecuted(ctx context.Context, tx pgx.Tx, accountID, orderNo int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[withdrawalKey{accountID, orderNo}]
	if !ok || req.Executed {
		return fmt.Errorf("withdrawal request missing or already executed")
	}
	req.Executed = true
	return nil
}

// --- In-Memory Outbox Repo ---

type inMemoryOutboxRepo struct {
	mu       sync.RWMutex
	messages []*domain.OutboxMessage
	nextID   int64
}

func newInMemoryOutboxRepo() *inMemoryOutboxRepo {
	return &inMemoryOutboxRepo{}
}

func (r *inMemoryOutboxRepo) Create(ctx context.Context, tx pgx.Tx, msg *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *msg
	cp.ID = r.nextID
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *inMemoryOutboxRepo) ListPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.OutboxMessage, 0, limit)
	for _, m := range r.messages {
		if m.Status != domain.OutboxStatusPending {
			continue
		}
		out = append(out, *m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *inMemoryOutboxRepo) setStatus(id int64, status domain.OutboxStatus) error {
	for _, m := range r.messages {
		if m.ID == id {
			m.Status = status
			return nil
		}
	}
	return fmt.Errorf("outbox message %d not found", id)
}

func (r *inMemoryOutboxRepo) MarkSent(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStatus(id, domain.OutboxStatusSent)
}

func (r *inMemoryOutboxRepo) MarkFailed(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStatus(id, domain.OutboxStatusFailed)
}

func (r *inMemoryOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.Attempts++
			return nil
		}
	}
	return fmt.Errorf("outbox message %d not found", id)
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with a single mutex, which
// stands in for the per-account row lock the postgres adapter takes.
// Concurrency tests rely on this: overlapping mutations execute one at
// a time, exactly as they would under SELECT FOR UPDATE.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{mu: &t.mu}, nil
}

// serialTx holds the transactor lock until Commit or Rollback.
type serialTx struct {
	mu   *sync.Mutex
	done bool
}

func (t *serialTx) finish() {
	if !t.done {
		t.done = true
		t.mu.Unlock()
	}
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
