package handler

import (
	"association-treasury/internal/adapter/http/dto"
	"association-treasury/internal/adapter/http/middleware"
	"association-treasury/internal/core/ports"
	"association-treasury/pkg/apperror"
	"association-treasury/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler handles deposit ledger endpoints.
type DepositHandler struct {
	depositSvc ports.DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositSvc ports.DepositService) *DepositHandler {
	return &DepositHandler{depositSvc: depositSvc}
}

// Deposit handles POST /api/v1/accounts/:id/deposits. Any
// authenticated caller may contribute, membership is not checked.
func (h *DepositHandler) Deposit(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}

	result, err := h.depositSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		AccountID: id,
		Depositor: middleware.CallerIdentity(c),
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositResponse{
		AccountID:      result.AccountID,
		AccountNo:      dto.FormatAccountNo(result.AccountID),
		Amount:         result.Amount,
		NewBalance:     result.NewBalance,
		DepositorTotal: result.DepositorTotal,
	})
}

// DepositedBy handles POST /api/v1/accounts/:id/deposits/me. Returns
// the caller's cumulative contribution, gated by the account secret.
func (h *DepositHandler) DepositedBy(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	var req dto.DepositedByRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	total, err := h.depositSvc.DepositedBy(c.Request.Context(), id, middleware.CallerIdentity(c), req.AccessSecret)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DepositedByResponse{
		AccountID: id,
		AccountNo: dto.FormatAccountNo(id),
		Total:     total,
	})
}
