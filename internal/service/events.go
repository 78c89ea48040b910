package service

import (
	"context"
	"fmt"

	"association-treasury/internal/core/domain"
	"association-treasury/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// stageEvent serializes a ledger event into the outbox inside the same
// transaction as the mutation it describes.
func stageEvent(ctx context.Context, tx pgx.Tx, repo ports.OutboxRepository, topic string, ev *domain.Event) error {
	msg, err := domain.NewOutboxMessage(topic, ev)
	if err != nil {
		return fmt.Errorf("stage event %s: %w", ev.Type, err)
	}
	if err := repo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("stage event %s: %w", ev.Type, err)
	}
	return nil
}
