package handler

import (
	"strconv"
	"time"

	"association-treasury/internal/adapter/http/dto"
	"association-treasury/internal/adapter/http/middleware"
	"association-treasury/internal/core/ports"
	"association-treasury/pkg/apperror"
	"association-treasury/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawalHandler handles the quorum-gated withdrawal endpoints.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// parseOrderNo extracts the :order_no path parameter.
func parseOrderNo(c *gin.Context) (int64, bool) {
	orderNo, err := strconv.ParseInt(c.Param("order_no"), 10, 64)
	if err != nil || orderNo <= 0 {
		response.Error(c, apperror.ErrInvalidInput("invalid order number"))
		return 0, false
	}
	return orderNo, true
}

// Initiate handles POST /api/v1/accounts/:id/withdrawals.
func (h *WithdrawalHandler) Initiate(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req dto.InitiateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}

	request, err := h.withdrawalSvc.Initiate(c.Request.Context(), ports.InitiateRequest{
		AccountID: id,
		Requester: middleware.CallerIdentity(c),
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WithdrawalResponse{
		AccountID:     request.AccountID,
		AccountNo:     dto.FormatAccountNo(request.AccountID),
		OrderNo:       request.OrderNo,
		Amount:        request.Amount,
		Initiator:     request.Initiator,
		ApprovalCount: request.ApprovalCount(),
		Executed:      request.Executed,
		CreatedAt:     request.CreatedAt.Format(time.RFC3339),
	})
}

// Status handles GET /api/v1/accounts/:id/withdrawals/:order_no.
func (h *WithdrawalHandler) Status(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	orderNo, ok := parseOrderNo(c)
	if !ok {
		return
	}

	request, err := h.withdrawalSvc.Status(c.Request.Context(), id, orderNo)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WithdrawalResponse{
		AccountID:     request.AccountID,
		AccountNo:     dto.FormatAccountNo(request.AccountID),
		OrderNo:       request.OrderNo,
		Amount:        request.Amount,
		Initiator:     request.Initiator,
		ApprovalCount: request.ApprovalCount(),
		Executed:      request.Executed,
		CreatedAt:     request.CreatedAt.Format(time.RFC3339),
	})
}

// Approve handles POST /api/v1/accounts/:id/withdrawals/:order_no/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	orderNo, ok := parseOrderNo(c)
	if !ok {
		return
	}

	count, err := h.withdrawalSvc.Approve(c.Request.Context(), ports.ApprovalRequest{
		AccountID: id,
		OrderNo:   orderNo,
		Executive: middleware.CallerIdentity(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ApprovalResponse{
		AccountID:     id,
		AccountNo:     dto.FormatAccountNo(id),
		OrderNo:       orderNo,
		ApprovalCount: count,
	})
}

// Revert handles POST /api/v1/accounts/:id/withdrawals/:order_no/revert.
func (h *WithdrawalHandler) Revert(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	orderNo, ok := parseOrderNo(c)
	if !ok {
		return
	}

	count, err := h.withdrawalSvc.Revert(c.Request.Context(), ports.ApprovalRequest{
		AccountID: id,
		OrderNo:   orderNo,
		Executive: middleware.CallerIdentity(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ApprovalResponse{
		AccountID:     id,
		AccountNo:     dto.FormatAccountNo(id),
		OrderNo:       orderNo,
		ApprovalCount: count,
	})
}

// Execute handles POST /api/v1/accounts/:id/withdrawals/:order_no/execute.
func (h *WithdrawalHandler) Execute(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}
	orderNo, ok := parseOrderNo(c)
	if !ok {
		return
	}

	result, err := h.withdrawalSvc.Execute(c.Request.Context(), ports.ExecuteRequest{
		AccountID: id,
		OrderNo:   orderNo,
		Caller:    middleware.CallerIdentity(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ExecuteResponse{
		AccountID:  result.AccountID,
		AccountNo:  dto.FormatAccountNo(result.AccountID),
		OrderNo:    result.OrderNo,
		Amount:     result.Amount,
		NewBalance: result.NewBalance,
	})
}
