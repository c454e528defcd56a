package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validEnvelope() *SignalEnvelope {
	return &SignalEnvelope{
		Ticker: "AAPL",
		Signals: []SignalPayload{
			{Source: "news", RawScore: 0.5, Confidence: 0.8, ObservedAt: "2026-08-25T10:00:00Z"},
		},
		SentAt: 1756116000,
	}
}

func TestEnvelopeValidate(t *testing.T) {
	assert.NoError(t, validEnvelope().Validate())

	cases := []struct {
		name   string
		mutate func(*SignalEnvelope)
	}{
		{"missing ticker", func(e *SignalEnvelope) { e.Ticker = "" }},
		{"no signals", func(e *SignalEnvelope) { e.Signals = nil }},
		{"too many signals", func(e *SignalEnvelope) {
			s := e.Signals[0]
			e.Signals = []SignalPayload{s, s, s, s}
		}},
		{"unknown source", func(e *SignalEnvelope) { e.Signals[0].Source = "sentiment" }},
		{"missing sent_at", func(e *SignalEnvelope) { e.SentAt = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEnvelope()
			tc.mutate(e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestEnvelopeSentTime(t *testing.T) {
	e := validEnvelope()
	want := time.Unix(1756116000, 0).UTC()
	assert.Equal(t, want, e.SentTime())

	// milliseconds are tolerated
	e.SentAt = 1756116000000
	assert.Equal(t, want, e.SentTime())
}
