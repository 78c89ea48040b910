package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"association-treasury/internal/adapter/http/dto"
	"association-treasury/internal/adapter/http/middleware"
	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"
	"association-treasury/internal/core/ports/mocks"
	"association-treasury/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestContext builds a gin context with an optional JSON body,
// account id param and caller identity, the way the middleware chain
// would leave it.
func newTestContext(t *testing.T, body any, params gin.Params, identity string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(http.MethodPost, "/", reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	if identity != "" {
		c.Set(middleware.CtxIdentity, identity)
	}
	return c, w
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestCreateSession_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockToken := mocks.NewMockTokenService(ctrl)
	h := NewAuthHandler(mockToken)

	expiry := time.Now().Add(24 * time.Hour)
	mockToken.EXPECT().Generate("alice").Return("jwt-token-123", expiry, nil)

	c, w := newTestContext(t, dto.SessionRequest{Identity: "Alice"}, nil, "")

	h.CreateSession(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "jwt-token-123", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestCreateSession_MissingIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockTokenService(ctrl))

	c, w := newTestContext(t, map[string]string{}, nil, "")

	h.CreateSession(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Account Handler Tests ---

func TestCreateAccount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAccount := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAccount)

	now := time.Now()
	mockAccount.EXPECT().Create(gomock.Any(), ports.CreateAccountRequest{
		Name:         "village circle",
		Executives:   []string{"alice", "bob", "carol"},
		AccessSecret: "open-sesame",
	}).Return(&domain.Account{
		ID:           7,
		Name:         "village circle",
		Executives:   []string{"alice", "bob", "carol"},
		TotalBalance: 0,
		CreatedAt:    now,
	}, nil)

	c, w := newTestContext(t, dto.CreateAccountRequest{
		Name:         "village circle",
		Executives:   []string{"alice", "bob", "carol"},
		AccessSecret: "open-sesame",
	}, nil, "")

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(7), data["account_id"])
	assert.Equal(t, "00007", data["account_no"])
	assert.Equal(t, float64(3), data["executives"])
}

func TestCreateAccount_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAccountHandler(mocks.NewMockAccountService(ctrl))

	// Empty body => binding error, service never called.
	c, w := newTestContext(t, map[string]string{}, nil, "")

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAccount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAccount := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAccount)

	mockAccount.EXPECT().Get(gomock.Any(), int64(7)).Return(&domain.Account{
		ID:           7,
		Name:         "village circle",
		Executives:   []string{"alice", "bob", "carol"},
		TotalBalance: 150,
		CreatedAt:    time.Now(),
	}, nil)

	c, w := newTestContext(t, nil, gin.Params{{Key: "id", Value: "7"}}, "")

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(150), data["total_balance"])
}

func TestGetAccount_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAccount := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAccount)

	mockAccount.EXPECT().Get(gomock.Any(), int64(99)).Return(nil, apperror.ErrNotFound("account"))

	c, w := newTestContext(t, nil, gin.Params{{Key: "id", Value: "99"}}, "")

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAccount_BadID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAccountHandler(mocks.NewMockAccountService(ctrl))

	c, w := newTestContext(t, nil, gin.Params{{Key: "id", Value: "seven"}}, "")

	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAccounts_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAccount := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAccount)

	mockAccount.EXPECT().List(gomock.Any(), 1, 20).Return([]domain.Account{
		{ID: 1, Name: "first", Executives: []string{"alice"}, CreatedAt: time.Now()},
		{ID: 2, Name: "second", Executives: []string{"bob", "carol"}, CreatedAt: time.Now()},
	}, int64(2), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=1&page_size=20", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	items := data["items"].([]interface{})
	assert.Len(t, items, 2)
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, float64(1), data["total_pages"])
}

func TestListAccounts_BadPageSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAccountHandler(mocks.NewMockAccountService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page_size=1000", nil)

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummary_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAccount := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAccount)

	mockAccount.EXPECT().Summary(gomock.Any(), ports.SummaryRequest{
		AccountID: 7,
		Caller:    "alice",
		Secret:    "open-sesame",
	}).Return(&ports.AccountSummary{
		AccountID:      7,
		Name:           "village circle",
		TotalBalance:   60,
		ExecutiveCount: 3,
		Withdrawals: []ports.WithdrawalStatus{
			{OrderNo: 1, Amount: 40, ApprovalCount: 3, Executed: true},
			{OrderNo: 2, Amount: 10, ApprovalCount: 1, Executed: false},
		},
		CallerDeposit: 35,
	}, nil)

	c, w := newTestContext(t, dto.SummaryRequest{AccessSecret: "open-sesame"},
		gin.Params{{Key: "id", Value: "7"}}, "alice")

	h.Summary(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "00007", data["account_no"])
	assert.Equal(t, float64(35), data["caller_deposit"])
	withdrawals := data["withdrawals"].([]interface{})
	assert.Len(t, withdrawals, 2)
}

func TestSummary_WrongSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAccount := mocks.NewMockAccountService(ctrl)
	h := NewAccountHandler(mockAccount)

	mockAccount.EXPECT().Summary(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidSecret())

	c, w := newTestContext(t, dto.SummaryRequest{AccessSecret: "wrong"},
		gin.Params{{Key: "id", Value: "7"}}, "alice")

	h.Summary(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Deposit Handler Tests ---

func TestDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDeposit := mocks.NewMockDepositService(ctrl)
	h := NewDepositHandler(mockDeposit)

	mockDeposit.EXPECT().Deposit(gomock.Any(), ports.DepositRequest{
		AccountID: 7,
		Depositor: "alice",
		Amount:    50,
	}).Return(&ports.DepositResult{
		AccountID:      7,
		NewBalance:     150,
		DepositorTotal: 80,
		Amount:         50,
	}, nil)

	c, w := newTestContext(t, dto.DepositRequest{Amount: 50},
		gin.Params{{Key: "id", Value: "7"}}, "alice")

	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(150), data["new_balance"])
	assert.Equal(t, float64(80), data["depositor_total"])
}

func TestDeposit_NonPositiveAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewDepositHandler(mocks.NewMockDepositService(ctrl))

	c, w := newTestContext(t, dto.DepositRequest{Amount: -5},
		gin.Params{{Key: "id", Value: "7"}}, "alice")

	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDepositedBy_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDeposit := mocks.NewMockDepositService(ctrl)
	h := NewDepositHandler(mockDeposit)

	mockDeposit.EXPECT().DepositedBy(gomock.Any(), int64(7), "alice", "open-sesame").Return(int64(35), nil)

	c, w := newTestContext(t, dto.DepositedByRequest{AccessSecret: "open-sesame"},
		gin.Params{{Key: "id", Value: "7"}}, "alice")

	h.DepositedBy(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(35), data["total"])
}

// --- Withdrawal Handler Tests ---

func TestInitiateWithdrawal_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Initiate(gomock.Any(), ports.InitiateRequest{
		AccountID: 7,
		Requester: "alice",
		Amount:    40,
	}).Return(&domain.WithdrawalRequest{
		AccountID: 7,
		OrderNo:   1,
		Amount:    40,
		Initiator: "alice",
		Approvals: []string{},
		CreatedAt: time.Now(),
	}, nil)

	c, w := newTestContext(t, dto.InitiateWithdrawalRequest{Amount: 40},
		gin.Params{{Key: "id", Value: "7"}}, "alice")

	h.Initiate(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(1), data["order_no"])
	assert.Equal(t, "alice", data["initiator"])
	assert.Equal(t, float64(0), data["approval_count"])
	assert.Equal(t, false, data["executed"])
}

func TestInitiateWithdrawal_NotExecutive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrNotExecutive())

	c, w := newTestContext(t, dto.InitiateWithdrawalRequest{Amount: 40},
		gin.Params{{Key: "id", Value: "7"}}, "mallory")

	h.Initiate(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestApprove_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Approve(gomock.Any(), ports.ApprovalRequest{
		AccountID: 7,
		OrderNo:   1,
		Executive: "bob",
	}).Return(2, nil)

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "1"}}, "bob")

	h.Approve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(2), data["approval_count"])
}

func TestApprove_BadOrderNo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWithdrawalHandler(mocks.NewMockWithdrawalService(ctrl))

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "zero"}}, "bob")

	h.Approve(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalStatus_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Status(gomock.Any(), int64(7), int64(1)).Return(&domain.WithdrawalRequest{
		AccountID: 7,
		OrderNo:   1,
		Amount:    40,
		Initiator: "alice",
		Approvals: []string{"alice", "bob"},
		CreatedAt: time.Now(),
	}, nil)

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "1"}}, "bob")

	h.Status(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(1), data["order_no"])
	assert.Equal(t, float64(40), data["amount"])
	assert.Equal(t, float64(2), data["approval_count"])
	assert.Equal(t, false, data["executed"])
}

func TestWithdrawalStatus_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Status(gomock.Any(), int64(7), int64(99)).
		Return(nil, apperror.ErrNotFound("withdrawal request"))

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "99"}}, "bob")

	h.Status(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevert_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Revert(gomock.Any(), ports.ApprovalRequest{
		AccountID: 7,
		OrderNo:   1,
		Executive: "bob",
	}).Return(1, nil)

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "1"}}, "bob")

	h.Revert(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(1), data["approval_count"])
}

func TestExecute_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Execute(gomock.Any(), ports.ExecuteRequest{
		AccountID: 7,
		OrderNo:   1,
		Caller:    "alice",
	}).Return(&ports.ExecuteResult{
		AccountID:  7,
		OrderNo:    1,
		Amount:     40,
		NewBalance: 60,
	}, nil)

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "1"}}, "alice")

	h.Execute(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, float64(60), data["new_balance"])
}

func TestExecute_QuorumNotMet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrQuorumNotMet(2, 3))

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "1"}}, "alice")

	h.Execute(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExecute_AlreadyExecuted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	mockWithdrawal.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAlreadyExecuted(1))

	c, w := newTestContext(t, nil,
		gin.Params{{Key: "id", Value: "7"}, {Key: "order_no", Value: "1"}}, "alice")

	h.Execute(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Health Check Test ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}
