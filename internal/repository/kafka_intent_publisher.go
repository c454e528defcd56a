package repository

import (
	"context"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	pkgkafka "FinFuse/pkg/kafka"
)

// KafkaIntentPublisher implements IntentPublisher for Kafka. Messages are
// keyed by ticker so the hash balancer keeps per-ticker ordering.
type KafkaIntentPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaIntentPublisher creates the Kafka intent publisher.
func NewKafkaIntentPublisher(producer *pkgkafka.Producer, topic string) drepo.IntentPublisher {
	return &KafkaIntentPublisher{producer: producer, topic: topic}
}

func (p *KafkaIntentPublisher) Publish(ctx context.Context, in *models.TradingIntent) error {
	return p.producer.Publish(ctx, p.topic, []byte(in.Ticker), in.Wire())
}

func (p *KafkaIntentPublisher) PublishBatch(ctx context.Context, intents []*models.TradingIntent) error {
	if len(intents) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(intents))
	for i, in := range intents {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(in.Ticker),
			Value: in.Wire(),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaIntentPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
