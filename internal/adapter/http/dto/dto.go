package dto

import "fmt"

// SessionRequest is the request body for session token issuance. The
// identity is assumed to be verified by the upstream authentication
// source fronting this API.
type SessionRequest struct {
	Identity string `json:"identity" binding:"required,identity"`
}

// SessionResponse is the response body for a successful session issuance.
type SessionResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateAccountRequest is the request body for account creation.
type CreateAccountRequest struct {
	Name         string   `json:"name" binding:"required,min=1,max=100"`
	Executives   []string `json:"executives" binding:"required,min=1,max=32,dive,identity"`
	AccessSecret string   `json:"access_secret" binding:"required,min=1,max=128"`
}

// AccountResponse is the public view of one account.
type AccountResponse struct {
	AccountID    int64  `json:"account_id"`
	AccountNo    string `json:"account_no"`
	Name         string `json:"name"`
	Executives   int    `json:"executives"`
	TotalBalance int64  `json:"total_balance"`
	CreatedAt    string `json:"created_at"`
}

// AccountListResponse wraps a paginated account list.
type AccountListResponse struct {
	Items      []AccountResponse `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// SummaryRequest is the request body for the secret-gated member view.
type SummaryRequest struct {
	AccessSecret string `json:"access_secret" binding:"required"`
}

// WithdrawalStatusResponse is one request's approval progress line.
type WithdrawalStatusResponse struct {
	OrderNo       int64 `json:"order_no"`
	Amount        int64 `json:"amount"`
	ApprovalCount int   `json:"approval_count"`
	Executed      bool  `json:"executed"`
}

// SummaryResponse is the member view of an account.
type SummaryResponse struct {
	AccountID      int64                      `json:"account_id"`
	AccountNo      string                     `json:"account_no"`
	Name           string                     `json:"name"`
	TotalBalance   int64                      `json:"total_balance"`
	ExecutiveCount int                        `json:"executive_count"`
	Withdrawals    []WithdrawalStatusResponse `json:"withdrawals"`
	CallerDeposit  int64                      `json:"caller_deposit"`
}

// DepositRequest is the request body for a member contribution.
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// DepositResponse is the response body for a recorded deposit.
type DepositResponse struct {
	AccountID      int64  `json:"account_id"`
	AccountNo      string `json:"account_no"`
	Amount         int64  `json:"amount"`
	NewBalance     int64  `json:"new_balance"`
	DepositorTotal int64  `json:"depositor_total"`
}

// DepositedByRequest is the request body for the caller's cumulative
// deposit lookup.
type DepositedByRequest struct {
	AccessSecret string `json:"access_secret" binding:"required"`
}

// DepositedByResponse reports the caller's cumulative deposit.
type DepositedByResponse struct {
	AccountID int64  `json:"account_id"`
	AccountNo string `json:"account_no"`
	Total     int64  `json:"total"`
}

// InitiateWithdrawalRequest is the request body for withdrawal initiation.
type InitiateWithdrawalRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// WithdrawalResponse is the response body for an initiated request.
type WithdrawalResponse struct {
	AccountID     int64  `json:"account_id"`
	AccountNo     string `json:"account_no"`
	OrderNo       int64  `json:"order_no"`
	Amount        int64  `json:"amount"`
	Initiator     string `json:"initiator"`
	ApprovalCount int    `json:"approval_count"`
	Executed      bool   `json:"executed"`
	CreatedAt     string `json:"created_at"`
}

// ApprovalResponse reports the approval count after approve or revert.
type ApprovalResponse struct {
	AccountID     int64  `json:"account_id"`
	AccountNo     string `json:"account_no"`
	OrderNo       int64  `json:"order_no"`
	ApprovalCount int    `json:"approval_count"`
}

// ExecuteResponse reports a settled withdrawal.
type ExecuteResponse struct {
	AccountID  int64  `json:"account_id"`
	AccountNo  string `json:"account_no"`
	OrderNo    int64  `json:"order_no"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

// FormatAccountNo renders the zero-padded display form of an account
// id, e.g. 7 -> "00007". Padding is presentation only; ids above 99999
// simply grow wider.
func FormatAccountNo(id int64) string {
	return fmt.Sprintf("%05d", id)
}
