package models

import (
	"fmt"
	"time"
)

// SignalEnvelope is the intake message producers push over the feed socket or
// the signals topic: whatever subset of sources is ready for one ticker, plus
// an optional context snapshot.
type SignalEnvelope struct {
	Ticker  string          `json:"ticker"`
	Signals []SignalPayload `json:"signals"`
	Context *ContextPayload `json:"context,omitempty"`
	SentAt  int64           `json:"sent_at"` // unix seconds; milliseconds tolerated
}

// Validate rejects envelopes the intake must not forward.
func (e *SignalEnvelope) Validate() error {
	if e.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if len(e.Signals) == 0 {
		return fmt.Errorf("no signals")
	}
	if len(e.Signals) > len(FusionOrder) {
		return fmt.Errorf("too many signals: %d", len(e.Signals))
	}
	for _, p := range e.Signals {
		if _, ok := ParseSource(p.Source); !ok {
			return fmt.Errorf("unknown source %q", p.Source)
		}
	}
	if e.SentAt <= 0 {
		return fmt.Errorf("sent_at is required")
	}
	return nil
}

// SentTime converts SentAt to UTC time, treating values too large to be
// seconds as milliseconds.
func (e *SignalEnvelope) SentTime() time.Time {
	t := e.SentAt
	if t > 1e12 {
		t = t / 1000
	}
	return time.Unix(t, 0).UTC()
}
