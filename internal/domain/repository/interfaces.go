package repository

import (
	"context"
	"time"

	"FinFuse/internal/domain/models"
)

// SignalStream is a live feed of signal envelopes pushed by upstream producers.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.SignalEnvelope, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// IntentPublisher hands finished intents to downstream consumers.
type IntentPublisher interface {
	Publish(ctx context.Context, intent *models.TradingIntent) error
	PublishBatch(ctx context.Context, intents []*models.TradingIntent) error
	Close() error
}

// IntentStore is the audit trail: every emitted intent, queryable per ticker.
type IntentStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, intent *models.TradingIntent) error
	StoreBatch(ctx context.Context, intents []*models.TradingIntent) error
	Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]*models.StoredIntent, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordIntentEmitted(backend, ticker string)
	RecordError(kind string)
	RecordComposite(ticker string, score float64)
	RecordLatency(op string, seconds float64)
}
