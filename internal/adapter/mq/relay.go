package mq

import (
	"context"
	"time"

	"association-treasury/internal/core/ports"

	"github.com/rs/zerolog"
)

// OutboxRelay drains pending outbox messages to Kafka. Delivery is
// at-least-once: a message is marked SENT only after the producer acks,
// and a crash between ack and mark replays it on the next tick.
type OutboxRelay struct {
	outboxRepo  ports.OutboxRepository
	publisher   ports.EventPublisher
	interval    time.Duration
	batchSize   int
	maxAttempts int
	log         zerolog.Logger
}

// NewOutboxRelay creates a new relay.
func NewOutboxRelay(
	outboxRepo ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
	log zerolog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Run drains the outbox on a ticker until the context is canceled.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.log.Info().
		Dur("interval", r.interval).
		Int("batch_size", r.batchSize).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopped")
			return
		case <-ticker.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce relays one batch of pending messages in insertion order.
func (r *OutboxRelay) DrainOnce(ctx context.Context) {
	messages, err := r.outboxRepo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("listing pending outbox messages failed")
		return
	}

	for _, msg := range messages {
		if err := r.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload); err != nil {
			r.handlePublishFailure(ctx, msg.ID, msg.Attempts, err)
			continue
		}

		if err := r.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
			// The message will be re-sent next tick; consumers must
			// tolerate duplicates.
			r.log.Error().Err(err).Int64("outbox_id", msg.ID).Msg("marking outbox message sent failed")
			continue
		}

		r.log.Debug().
			Int64("outbox_id", msg.ID).
			Str("key", msg.MessageKey).
			Msg("outbox message delivered")
	}
}

func (r *OutboxRelay) handlePublishFailure(ctx context.Context, id int64, attempts int, pubErr error) {
	r.log.Warn().Err(pubErr).Int64("outbox_id", id).Msg("outbox publish failed")

	if err := r.outboxRepo.IncrementAttempts(ctx, id); err != nil {
		r.log.Error().Err(err).Int64("outbox_id", id).Msg("incrementing outbox attempts failed")
		return
	}

	if attempts+1 >= r.maxAttempts {
		if err := r.outboxRepo.MarkFailed(ctx, id); err != nil {
			r.log.Error().Err(err).Int64("outbox_id", id).Msg("marking outbox message failed failed")
			return
		}
		r.log.Error().
			Int64("outbox_id", id).
			Int("attempts", attempts+1).
			Msg("outbox message exhausted delivery attempts")
	}
}
