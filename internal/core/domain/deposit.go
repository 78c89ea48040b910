package domain

import "time"

// DepositRecord is the cumulative contribution of one member identity
// into one account. Records are only ever created or incremented,
// never deleted.
type DepositRecord struct {
	AccountID int64     `json:"account_id"`
	Depositor string    `json:"depositor"`
	Total     int64     `json:"total"` // cumulative amount in smallest unit
	UpdatedAt time.Time `json:"updated_at"`
}
