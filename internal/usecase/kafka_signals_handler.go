package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	pkgkafka "FinFuse/pkg/kafka"
)

// KafkaSignalsHandler consumes envelope messages from the signals topic and
// fuses them through the shared ingest path.
type KafkaSignalsHandler struct {
	topic   string
	ingest  *SignalIngest
	metrics drepo.Metrics
}

func NewKafkaSignalsHandler(topic string, ingest *SignalIngest, metrics drepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, ingest: ingest, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// incoming message schema: one SignalEnvelope per message
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var env models.SignalEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if err := env.Validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}
	// E2E latency from producer send time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(env.SentTime()).Seconds())

	return h.ingest.Process(ctx, &env)
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
