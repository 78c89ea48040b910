package mq

import (
	"context"
	"fmt"

	"association-treasury/config"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// NewSyncProducer creates a Kafka sync producer. All replicas must ack
// before a send returns, so a delivered outbox row is durably published.
func NewSyncProducer(cfg config.KafkaConfig, log zerolog.Logger) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer created")

	return producer, nil
}

// Publisher implements ports.EventPublisher on a sarama SyncProducer.
type Publisher struct {
	producer sarama.SyncProducer
}

// NewPublisher wraps a sarama producer as an event publisher.
func NewPublisher(producer sarama.SyncProducer) *Publisher {
	return &Publisher{producer: producer}
}

// Publish sends one event synchronously. The key carries the account
// partition key, so per-account ordering survives transport.
func (p *Publisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send kafka message: %w", err)
	}
	return nil
}
