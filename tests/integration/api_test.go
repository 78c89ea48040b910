package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "association-treasury/internal/adapter/http/handler"
	redisStorage "association-treasury/internal/adapter/storage/redis"
	"association-treasury/internal/core/quorum"
	"association-treasury/internal/service"
	"association-treasury/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack over in-memory storage:
// miniredis behind the real summary cache, in-memory postgres repos
// behind the real services. This exercises the real HTTP layer,
// middleware, handlers, and services end-to-end.

const testTopic = "treasury.events"

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	outbox *inMemoryOutboxRepo
}

func newTestApp(t *testing.T, policy quorum.Policy) *testApp {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	summaryCache := redisStorage.NewSummaryCache(rdb)

	// Core services with real implementations
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")

	// In-memory repos
	accountRepo := newInMemoryAccountRepo()
	depositRepo := newInMemoryDepositRepo()
	withdrawalRepo := newInMemoryWithdrawalRepo()
	outboxRepo := newInMemoryOutboxRepo()
	transactor := newInMemoryTransactor()

	// Business services
	log := logger.New("debug", false)
	accountSvc := service.NewAccountService(accountRepo, depositRepo, withdrawalRepo, outboxRepo, hashSvc, summaryCache, transactor, testTopic, log)
	depositSvc := service.NewDepositService(accountRepo, depositRepo, outboxRepo, hashSvc, summaryCache, transactor, testTopic, log)
	withdrawalSvc := service.NewWithdrawalService(accountRepo, withdrawalRepo, outboxRepo, summaryCache, transactor, policy, testTopic, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:    accountSvc,
		DepositSvc:    depositSvc,
		WithdrawalSvc: withdrawalSvc,
		TokenSvc:      tokenSvc,
		Logger:        log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server: server,
		redis:  mr,
		outbox: outboxRepo,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// --- Helpers ---

func postJSON(t *testing.T, url, token string, body any) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &parsed)
	return resp, parsed
}

func getJSON(t *testing.T, url, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &parsed)
	return resp, parsed
}

func jsonDecode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

func sessionToken(t *testing.T, app *testApp, identity string) string {
	t.Helper()
	resp, body := postJSON(t, app.server.URL+"/api/v1/auth/session", "", map[string]string{"identity": identity})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	return data["token"].(string)
}

func createAccount(t *testing.T, app *testApp, name string, executives []string, secret string) int64 {
	t.Helper()
	resp, body := postJSON(t, app.server.URL+"/api/v1/accounts", "", map[string]any{
		"name":          name,
		"executives":    executives,
		"access_secret": secret,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	return int64(data["account_id"].(float64))
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_Session(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	token := sessionToken(t, app, "Alice")
	assert.NotEmpty(t, token)

	// Malformed identity is rejected at the door.
	resp, _ := postJSON(t, app.server.URL+"/api/v1/auth/session", "", map[string]string{"identity": "has space"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_CreateAndGetAccount(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	id := createAccount(t, app, "village circle", []string{"alice", "bob", "carol"}, "open-sesame")
	assert.Equal(t, int64(1), id)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "00001", data["account_no"])
	assert.Equal(t, "village circle", data["name"])
	assert.Equal(t, float64(3), data["executives"])
	assert.Equal(t, float64(0), data["total_balance"])
}

func TestIntegration_ListAccounts(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	createAccount(t, app, "first", []string{"alice"}, "s1")
	createAccount(t, app, "second", []string{"bob"}, "s2")

	resp, err := http.Get(app.server.URL + "/api/v1/accounts?page=1&page_size=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	assert.Len(t, data["items"].([]interface{}), 2)
}

func TestIntegration_DuplicateExecutiveRejected(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	resp, _ := postJSON(t, app.server.URL+"/api/v1/accounts", "", map[string]any{
		"name":          "dup",
		"executives":    []string{"alice", "ALICE"},
		"access_secret": "s",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_WithdrawalWorkflow(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	id := createAccount(t, app, "village circle", []string{"alice", "bob", "carol"}, "open-sesame")
	base := fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id)

	alice := sessionToken(t, app, "alice")
	bob := sessionToken(t, app, "bob")
	carol := sessionToken(t, app, "carol")
	dave := sessionToken(t, app, "dave")

	// dave is not a member but can still contribute
	resp, body := postJSON(t, base+"/deposits", dave, map[string]any{"amount": 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(100), data["new_balance"])
	assert.Equal(t, float64(100), data["depositor_total"])

	// non-executive cannot initiate
	resp, _ = postJSON(t, base+"/withdrawals", dave, map[string]any{"amount": 40})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// a single request larger than the balance is rejected up front
	resp, _ = postJSON(t, base+"/withdrawals", alice, map[string]any{"amount": 500})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// alice initiates 40 -> order 1
	resp, body = postJSON(t, base+"/withdrawals", alice, map[string]any{"amount": 40})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["order_no"])
	assert.Equal(t, "alice", data["initiator"])
	assert.Equal(t, float64(0), data["approval_count"])

	// initiation does not reserve funds
	resp, _ = postJSON(t, base+"/withdrawals", bob, map[string]any{"amount": 90})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// executing before quorum fails
	resp, _ = postJSON(t, base+"/withdrawals/1/execute", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// two of three approvals is still short of unanimous
	resp, body = postJSON(t, base+"/withdrawals/1/approve", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = postJSON(t, base+"/withdrawals/1/approve", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["approval_count"])

	resp, _ = postJSON(t, base+"/withdrawals/1/execute", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// status read reflects the partial approval set
	resp, body = getJSON(t, base+"/withdrawals/1", dave)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["approval_count"])
	assert.Equal(t, false, data["executed"])

	resp, _ = getJSON(t, base+"/withdrawals/99", dave)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// approving twice is a no-op
	resp, body = postJSON(t, base+"/withdrawals/1/approve", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["approval_count"])

	// carol completes the quorum; execution debits the balance
	resp, _ = postJSON(t, base+"/withdrawals/1/approve", carol, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = postJSON(t, base+"/withdrawals/1/execute", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(40), data["amount"])
	assert.Equal(t, float64(60), data["new_balance"])

	// a second execution is rejected
	resp, _ = postJSON(t, base+"/withdrawals/1/execute", bob, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = getJSON(t, base+"/withdrawals/1", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, true, data["executed"])

	// order 2 (90) now exceeds the remaining 60 even with full quorum
	for _, tok := range []string{alice, bob, carol} {
		resp, _ = postJSON(t, base+"/withdrawals/2/approve", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ = postJSON(t, base+"/withdrawals/2/execute", carol, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestIntegration_RevertWithdrawsApproval(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	id := createAccount(t, app, "circle", []string{"alice", "bob"}, "s")
	base := fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id)

	alice := sessionToken(t, app, "alice")
	bob := sessionToken(t, app, "bob")

	resp, _ := postJSON(t, base+"/deposits", alice, map[string]any{"amount": 50})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = postJSON(t, base+"/withdrawals", alice, map[string]any{"amount": 20})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = postJSON(t, base+"/withdrawals/1/approve", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = postJSON(t, base+"/withdrawals/1/approve", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// bob withdraws consent before execution
	resp, body := postJSON(t, base+"/withdrawals/1/revert", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["approval_count"])

	resp, _ = postJSON(t, base+"/withdrawals/1/execute", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestIntegration_MajorityPolicy(t *testing.T) {
	app := newTestApp(t, quorum.Majority)
	defer app.close()

	id := createAccount(t, app, "circle", []string{"alice", "bob", "carol"}, "s")
	base := fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id)

	alice := sessionToken(t, app, "alice")
	bob := sessionToken(t, app, "bob")

	resp, _ := postJSON(t, base+"/deposits", alice, map[string]any{"amount": 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = postJSON(t, base+"/withdrawals", alice, map[string]any{"amount": 30})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// 2 of 3 is a strict majority
	resp, _ = postJSON(t, base+"/withdrawals/1/approve", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = postJSON(t, base+"/withdrawals/1/approve", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, base+"/withdrawals/1/execute", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(70), data["new_balance"])
}

func TestIntegration_SummaryAndDepositedBy(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	id := createAccount(t, app, "circle", []string{"alice", "bob"}, "open-sesame")
	base := fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id)

	alice := sessionToken(t, app, "alice")

	resp, _ := postJSON(t, base+"/deposits", alice, map[string]any{"amount": 35})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = postJSON(t, base+"/withdrawals", alice, map[string]any{"amount": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// wrong secret is rejected
	resp, _ = postJSON(t, base+"/summary", alice, map[string]string{"access_secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := postJSON(t, base+"/summary", alice, map[string]string{"access_secret": "open-sesame"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(35), data["total_balance"])
	assert.Equal(t, float64(35), data["caller_deposit"])
	assert.Equal(t, float64(2), data["executive_count"])
	withdrawals := data["withdrawals"].([]interface{})
	require.Len(t, withdrawals, 1)
	first := withdrawals[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["order_no"])
	assert.Equal(t, false, first["executed"])

	// summary is served from cache on the second read
	resp, body = postJSON(t, base+"/summary", alice, map[string]string{"access_secret": "open-sesame"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(35), data["total_balance"])

	resp, body = postJSON(t, base+"/deposits/me", alice, map[string]string{"access_secret": "open-sesame"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(35), data["total"])
}

func TestIntegration_Unauthorized(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	id := createAccount(t, app, "circle", []string{"alice"}, "s")
	base := fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id)

	resp, _ := postJSON(t, base+"/deposits", "", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, base+"/withdrawals", "", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_EventsStagedInOutbox(t *testing.T) {
	app := newTestApp(t, quorum.Unanimous)
	defer app.close()

	id := createAccount(t, app, "circle", []string{"alice"}, "s")
	base := fmt.Sprintf("%s/api/v1/accounts/%d", app.server.URL, id)

	alice := sessionToken(t, app, "alice")
	resp, _ := postJSON(t, base+"/deposits", alice, map[string]any{"amount": 10})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// ACCOUNT_CREATED + DEPOSITED staged for the relay
	pending, err := app.outbox.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, fmt.Sprintf("account-%d", id), pending[0].MessageKey)
	assert.Contains(t, string(pending[0].Payload), "ACCOUNT_CREATED")
	assert.Contains(t, string(pending[1].Payload), "DEPOSITED")
}
