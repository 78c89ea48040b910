package domain

import "time"

// WithdrawalRequest is a single quorum-gated withdrawal. Order numbers
// are sequential per account, starting at 1, never reused. A request
// stays open until executed; there is no rejected terminal state.
type WithdrawalRequest struct {
	AccountID int64     `json:"account_id"`
	OrderNo   int64     `json:"order_no"`
	Amount    int64     `json:"amount"` // fixed at initiation
	Initiator string    `json:"initiator"`
	Approvals []string  `json:"approvals"` // distinct executive identities
	Executed  bool      `json:"executed"`  // set true exactly once
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalCount returns the number of distinct executives currently
// approving this request ("X" in the "X of Y" progress).
func (w *WithdrawalRequest) ApprovalCount() int {
	return len(w.Approvals)
}

// HasApproval reports whether the given executive already approves.
func (w *WithdrawalRequest) HasApproval(executive string) bool {
	for _, a := range w.Approvals {
		if a == executive {
			return true
		}
	}
	return false
}
