package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the publishing side of a queue.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

func (c *QueueConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
}

// Message is the envelope stored in Redis around a job payload.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload coerces a queue payload into *T. Payloads arrive either as the
// original value (same-process enqueue) or as decoded JSON after a round trip
// through Redis; both shapes land on the same struct.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	}

	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode payload: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &out, nil
}
