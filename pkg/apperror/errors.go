package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Account & Ledger (ACC) ----

// ErrInvalidInput covers malformed or out-of-range arguments.
// Caller error, never retried automatically.
func ErrInvalidInput(detail string) *AppError {
	return New("ACC_001", detail, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("ACC_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Access Control (SEC) ----

func ErrNotExecutive() *AppError {
	return New("SEC_001", "Caller is not an executive of this account", http.StatusForbidden)
}

func ErrInvalidSecret() *AppError {
	return New("SEC_002", "Invalid account access secret", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Withdrawal Workflow (WDR) ----

func ErrAlreadyExecuted(orderNo int64) *AppError {
	return New("WDR_001", fmt.Sprintf("Withdrawal request %d has already been executed", orderNo), http.StatusConflict)
}

func ErrQuorumNotMet(have, need int) *AppError {
	return New("WDR_002", fmt.Sprintf("Quorum not met: %d of %d required approvals", have, need), http.StatusUnprocessableEntity)
}

func ErrInsufficientFunds() *AppError {
	return New("WDR_003", "Insufficient account balance", http.StatusPaymentRequired)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
