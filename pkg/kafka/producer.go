package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka-go writer behind Publish/PublishBatch.
type Producer struct {
	writer  *kafka.Writer
	comp    string
	metrics *producerMetrics
}

// Message represents a Kafka message.
type Message struct {
	Key   []byte
	Value interface{}
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	// Hash balancer keeps one ticker on one partition; LeastBytes spreads load
	// when ordering does not matter.
	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}

	return &Producer{writer: writer, comp: cfg.Compression, metrics: publishMetrics()}, nil
}

// Publish sends a message to the specified topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}
	return p.send(ctx, topic, int64(len(v)), kafka.Message{
		Topic: topic,
		Key:   key,
		Value: v,
		Time:  time.Now(),
	})
}

// PublishBatch sends multiple messages to the specified topic.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(messages))
	var total int64
	for _, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		total += int64(len(v))
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   m.Key,
			Value: v,
			Time:  time.Now(),
		})
	}
	return p.send(ctx, topic, total, msgs...)
}

// send writes the batch and records publish metrics for it.
func (p *Producer) send(ctx context.Context, topic string, bytes int64, msgs ...kafka.Message) error {
	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	p.metrics.observe(topic, p.comp, bytes, len(msgs), time.Since(start), err)
	return err
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// encodeValue passes raw bytes and strings through and JSON-encodes the rest.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

type producerMetrics struct {
	msgs    *prometheus.CounterVec
	errs    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	prodMetrics     *producerMetrics
	prodMetricsOnce sync.Once
)

// publishMetrics registers the producer metric family once and hands the same
// instance to every Producer.
func publishMetrics() *producerMetrics {
	prodMetricsOnce.Do(func() {
		prodMetrics = &producerMetrics{
			msgs: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finfuse_kafka_producer_messages_total",
				Help: "Messages published, by topic and result",
			}, []string{"topic", "compression", "result"}),
			errs: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finfuse_kafka_producer_errors_total",
				Help: "Failed publish calls",
			}, []string{"topic"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finfuse_kafka_producer_bytes_total",
				Help: "Payload bytes handed to the writer",
			}, []string{"topic", "compression"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "finfuse_kafka_producer_publish_seconds",
				Help:    "WriteMessages latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
	return prodMetrics
}

func (m *producerMetrics) observe(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errs.WithLabelValues(topic).Inc()
	}
	m.msgs.WithLabelValues(topic, comp, outcome).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
