package handler

import (
	"net/http"

	"association-treasury/internal/adapter/http/dto"
	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"
	"association-treasury/pkg/apperror"
	"association-treasury/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles session issuance.
type AuthHandler struct {
	tokenSvc ports.TokenService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(tokenSvc ports.TokenService) *AuthHandler {
	return &AuthHandler{tokenSvc: tokenSvc}
}

// CreateSession handles POST /api/v1/auth/session. The identity is
// taken at face value; verifying it is the job of whatever fronts this
// API (signature check, SSO, etc).
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req dto.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}
	dto.TrimStruct(&req)

	identity, err := domain.NormalizeIdentity(req.Identity)
	if err != nil {
		response.Error(c, apperror.ErrInvalidInput(err.Error()))
		return
	}

	token, expiry, err := h.tokenSvc.Generate(identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.SessionResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// HealthCheck handles GET /health — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
