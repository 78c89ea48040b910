package postgres

import (
	"context"
	"fmt"

	"association-treasury/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// OutboxRepo implements ports.OutboxRepository. Messages are written in
// the same transaction as the mutation they describe and drained by the
// background relay.
type OutboxRepo struct {
	pool Pool
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(pool Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

// Create stages one message inside the caller's transaction.
func (r *OutboxRepo) Create(ctx context.Context, tx pgx.Tx, msg *domain.OutboxMessage) error {
	query := `INSERT INTO outbox_messages (message_key, topic, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		msg.MessageKey, msg.Topic, msg.Payload, msg.Status,
		msg.Attempts, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// ListPending returns up to limit undelivered messages in insertion
// order, which preserves per-account event ordering.
func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	query := `SELECT id, message_key, topic, payload, status, attempts, created_at, updated_at
		FROM outbox_messages WHERE status = $1 ORDER BY id LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.OutboxMessage, 0)
	for rows.Next() {
		var m domain.OutboxMessage
		if err := rows.Scan(&m.ID, &m.MessageKey, &m.Topic, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return messages, nil
}

// MarkSent records successful delivery.
func (r *OutboxRepo) MarkSent(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, domain.OutboxStatusSent)
}

// MarkFailed parks a message that exhausted its delivery attempts.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, domain.OutboxStatusFailed)
}

func (r *OutboxRepo) setStatus(ctx context.Context, id int64, status domain.OutboxStatus) error {
	query := `UPDATE outbox_messages SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set outbox status %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox message not found: %d", id)
	}
	return nil
}

// IncrementAttempts bumps the delivery attempt counter after a failed
// publish.
func (r *OutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	query := `UPDATE outbox_messages SET attempts = attempts + 1, updated_at = NOW() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("increment outbox attempts: %w", err)
	}
	return nil
}
