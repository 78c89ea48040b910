package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a ledger event emitted for the presentation layer.
type EventType string

const (
	EventAccountCreated      EventType = "ACCOUNT_CREATED"
	EventDeposited           EventType = "DEPOSITED"
	EventWithdrawalInitiated EventType = "WITHDRAWAL_INITIATED"
	EventWithdrawalApproved  EventType = "WITHDRAWAL_APPROVED"
	EventWithdrawalReverted  EventType = "WITHDRAWAL_REVERTED"
	EventWithdrawalExecuted  EventType = "WITHDRAWAL_EXECUTED"
)

// Event is the discrete value emitted by each successful mutation.
// Optional fields are set per event type: OrderNo for withdrawal
// events, ApprovalCount after approve/revert, Amount for money moves.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Type          EventType `json:"type"`
	AccountID     int64     `json:"account_id"`
	Actor         string    `json:"actor,omitempty"`
	OrderNo       *int64    `json:"order_no,omitempty"`
	Amount        *int64    `json:"amount,omitempty"`
	ApprovalCount *int      `json:"approval_count,omitempty"`
	NewBalance    *int64    `json:"new_balance,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent constructs an event with a fresh id and timestamp.
func NewEvent(typ EventType, accountID int64, actor string) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       typ,
		AccountID:  accountID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

func (e *Event) WithOrderNo(n int64) *Event     { e.OrderNo = &n; return e }
func (e *Event) WithAmount(a int64) *Event      { e.Amount = &a; return e }
func (e *Event) WithApprovalCount(c int) *Event { e.ApprovalCount = &c; return e }
func (e *Event) WithNewBalance(b int64) *Event  { e.NewBalance = &b; return e }

// PartitionKey groups events of one account onto one Kafka partition so
// per-account ordering survives transport.
func (e *Event) PartitionKey() string {
	return fmt.Sprintf("account-%d", e.AccountID)
}

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// OutboxMessage is a ledger event staged for Kafka delivery. Written in
// the same database transaction as the mutation it describes, relayed
// at-least-once by the background sender.
type OutboxMessage struct {
	ID         int64        `json:"id"`
	MessageKey string       `json:"message_key"`
	Topic      string       `json:"topic"`
	Payload    []byte       `json:"payload"`
	Status     OutboxStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewOutboxMessage serializes an event into a pending outbox row.
func NewOutboxMessage(topic string, ev *Event) (*OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	now := time.Now().UTC()
	return &OutboxMessage{
		MessageKey: ev.PartitionKey(),
		Topic:      topic,
		Payload:    payload,
		Status:     OutboxStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
