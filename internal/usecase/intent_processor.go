package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	applogger "FinFuse/pkg/logger"
	pkgqueue "FinFuse/pkg/queue"
)

// MsgTypeRecordIntent is the queue message type for intent write replays.
const MsgTypeRecordIntent = "intent.record"

// RecordIntentPayload is the retry-queue payload for one failed write.
type RecordIntentPayload struct {
	Intent models.TradingIntent `json:"intent"`
}

// IntentProcessor routes finished intents to the configured backend. A write
// that fails is handed to the retry queue so the intent is not lost with the
// request.
type IntentProcessor struct {
	pub     drepo.IntentPublisher
	store   drepo.IntentStore
	metrics drepo.Metrics
	queue   pkgqueue.QueueService
	l       *applogger.Logger
	backend string
	batchSz int
	batchTO time.Duration
}

// NewIntentProcessor creates a new IntentProcessor instance.
func NewIntentProcessor(
	pub drepo.IntentPublisher,
	store drepo.IntentStore,
	metrics drepo.Metrics,
	queue pkgqueue.QueueService,
	l *applogger.Logger,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *IntentProcessor {
	return &IntentProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		queue:   queue,
		l:       l,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Record writes one intent to the configured backend, nothing more. The
// retry job calls this directly so a replayed failure is not re-enqueued
// here; the queue's own retry and dead-letter handling owns that.
func (p *IntentProcessor) Record(ctx context.Context, in *models.TradingIntent) error {
	switch p.backend {
	case "kafka":
		return p.pub.Publish(ctx, in)
	case "clickhouse":
		return p.store.Store(ctx, in)
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}
}

// Process records a single intent and routes failures to the retry queue.
func (p *IntentProcessor) Process(ctx context.Context, in *models.TradingIntent) error {
	if in == nil {
		return fmt.Errorf("intent is nil")
	}

	start := time.Now()
	if err := p.Record(ctx, in); err != nil {
		p.metrics.RecordError("process")
		p.requeue(ctx, in)
		return fmt.Errorf("process intent: %w", err)
	}

	p.metrics.RecordIntentEmitted(p.backend, in.Ticker)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch records multiple intents in a batch.
func (p *IntentProcessor) ProcessBatch(ctx context.Context, intents []*models.TradingIntent) error {
	if len(intents) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, intents)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, intents)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		for _, in := range intents {
			p.requeue(ctx, in)
		}
		return fmt.Errorf("process batch: %w", err)
	}

	for _, in := range intents {
		p.metrics.RecordIntentEmitted(p.backend, in.Ticker)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

func (p *IntentProcessor) requeue(ctx context.Context, in *models.TradingIntent) {
	if p.queue == nil {
		return
	}
	if err := p.queue.PublishMessage(ctx, MsgTypeRecordIntent, RecordIntentPayload{Intent: *in}); err != nil {
		p.metrics.RecordError("requeue")
		if p.l != nil {
			p.l.Error("requeue intent", applogger.String("ticker", in.Ticker), applogger.Error(err))
		}
	}
}

// Close closes underlying resources if available.
func (p *IntentProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
