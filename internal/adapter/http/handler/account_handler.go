package handler

import (
	"strconv"
	"time"

	"association-treasury/internal/adapter/http/dto"
	"association-treasury/internal/adapter/http/middleware"
	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"
	"association-treasury/pkg/apperror"
	"association-treasury/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// AccountHandler handles account registry endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// parseAccountID extracts the :id path parameter.
func parseAccountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperror.ErrInvalidInput("invalid account id"))
		return 0, false
	}
	return id, true
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	account, err := h.accountSvc.Create(c.Request.Context(), ports.CreateAccountRequest{
		Name:         req.Name,
		Executives:   req.Executives,
		AccessSecret: req.AccessSecret,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAccountResponse(account))
}

// Get handles GET /api/v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account))
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		response.Error(c, apperror.ErrInvalidInput("invalid page"))
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 || pageSize > 100 {
		response.Error(c, apperror.ErrInvalidInput("invalid page_size"))
		return
	}

	accounts, total, err := h.accountSvc.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, toAccountResponse(&accounts[i]))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response.OK(c, dto.AccountListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Summary handles POST /api/v1/accounts/:id/summary. POST because the
// access secret travels in the body, never in the URL.
func (h *AccountHandler) Summary(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req dto.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	summary, err := h.accountSvc.Summary(c.Request.Context(), ports.SummaryRequest{
		AccountID: id,
		Caller:    middleware.CallerIdentity(c),
		Secret:    req.AccessSecret,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	withdrawals := make([]dto.WithdrawalStatusResponse, 0, len(summary.Withdrawals))
	for _, w := range summary.Withdrawals {
		withdrawals = append(withdrawals, dto.WithdrawalStatusResponse{
			OrderNo:       w.OrderNo,
			Amount:        w.Amount,
			ApprovalCount: w.ApprovalCount,
			Executed:      w.Executed,
		})
	}

	response.OK(c, dto.SummaryResponse{
		AccountID:      summary.AccountID,
		AccountNo:      dto.FormatAccountNo(summary.AccountID),
		Name:           summary.Name,
		TotalBalance:   summary.TotalBalance,
		ExecutiveCount: summary.ExecutiveCount,
		Withdrawals:    withdrawals,
		CallerDeposit:  summary.CallerDeposit,
	})
}

func toAccountResponse(a *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		AccountID:    a.ID,
		AccountNo:    dto.FormatAccountNo(a.ID),
		Name:         a.Name,
		Executives:   a.ExecutiveCount(),
		TotalBalance: a.TotalBalance,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}
