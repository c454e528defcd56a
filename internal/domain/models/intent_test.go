package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireDedupesGatesInFirstTriggerOrder(t *testing.T) {
	in := &TradingIntent{
		Ticker:    "AAPL",
		Direction: DirectionHold,
		GatesTriggered: []GateOutcome{
			{GateName: "EventPriorityGate", Status: StatusDampened},
			{GateName: "LiquidityGate", Status: StatusClosed},
			{GateName: "EventPriorityGate", Status: StatusOpen},
			{GateName: "SafetyOverride", Status: StatusDampened},
		},
		SizeAdjustment: 1.0,
	}

	wire := in.Wire()
	assert.Equal(t, []string{"EventPriorityGate", "LiquidityGate", "SafetyOverride"}, wire.GatesTriggered)
}

func TestWireCarriesRationalePerSource(t *testing.T) {
	in := &TradingIntent{
		Ticker:     "AAPL",
		Direction:  DirectionBuy,
		Confidence: 0.85,
		Contributions: []Contribution{
			{Source: SourceNews, RawScore: 0.8, Confidence: 0.9, AppliedWeight: 1.5, GateStatus: StatusOpen, ContributionValue: 1.08},
			{Source: SourceChart, RawScore: 0.6, Confidence: 0.8, AppliedWeight: 0, GateStatus: StatusClosed, ContributionValue: 0},
		},
		SizeAdjustment: 1.0,
	}

	wire := in.Wire()
	require.Len(t, wire.Rationale, 2)
	assert.Equal(t, "+1.0800 = 0.8000 raw x 0.9000 conf x 1.5000 weight", wire.Rationale["news"])
	assert.Equal(t, "+0.0000 = 0.6000 raw x 0.8000 conf x 0.0000 weight (CLOSED)", wire.Rationale["chart"])
	assert.Equal(t, 0.85, wire.Confidence)
	assert.Equal(t, 1.0, wire.RecommendedSizeAdj)
}

func TestContributionRationaleSign(t *testing.T) {
	c := Contribution{Source: SourceChart, RawScore: -0.5, Confidence: 0.8, AppliedWeight: 1, GateStatus: StatusOpen, ContributionValue: -0.4}
	assert.Equal(t, "-0.4000 = -0.5000 raw x 0.8000 conf x 1.0000 weight", c.Rationale())

	c.GateStatus = StatusDampened
	assert.Contains(t, c.Rationale(), "(DAMPENED)")
}

func TestParseSource(t *testing.T) {
	cases := []struct {
		in   string
		want SignalSource
		ok   bool
	}{
		{"news", SourceNews, true},
		{" Chart ", SourceChart, true},
		{"GRAPH", SourceGraph, true},
		{"sentiment", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseSource(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
