package repository

import (
	"context"
	"fmt"

	"EmeraldAgent/internal/domain/models"
	domrepo "EmeraldAgent/internal/domain/repository"
	pkgkafka "EmeraldAgent/pkg/kafka"
)

// KafkaResultPublisher publishes decision results keyed by request id, so all
// replies for one request land on the same partition.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) PublishResult(ctx context.Context, res *models.DecisionResult) error {
	if res == nil {
		return fmt.Errorf("publish result: nil result")
	}
	key := []byte(res.RequestID)
	if err := p.producer.Publish(ctx, p.topic, key, res,
		pkgkafka.Header{Key: "x-request-id", Value: key},
	); err != nil {
		return fmt.Errorf("publish result %s: %w", res.RequestID, err)
	}
	return nil
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)
