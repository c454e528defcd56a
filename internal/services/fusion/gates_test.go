package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
)

var observedAt = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func sig(src models.SignalSource, raw, conf float64) models.Signal {
	return models.Signal{Source: src, RawScore: raw, Confidence: conf, ObservedAt: observedAt}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name     string
		mult     float64
		dampened bool
		want     models.GateStatus
	}{
		{"zero is closed", 0, false, models.StatusClosed},
		{"zero stays closed even when marked", 0, true, models.StatusClosed},
		{"fractional is dampened", 0.5, false, models.StatusDampened},
		{"unit is open", 1, false, models.StatusOpen},
		{"above unit is open", 1.5, false, models.StatusOpen},
		{"marked dampening wins over magnitude", 1, true, models.StatusDampened},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.mult, tc.dampened))
		})
	}
}

func TestLiquidityGate(t *testing.T) {
	cfg := DefaultConfig()

	out := liquidityGate(models.GateContext{Volume: cfg.MinChartVolume - 1}, cfg)
	assert.Equal(t, models.StatusClosed, out.Status)
	assert.Equal(t, 0.0, out.WeightMultiplier)
	assert.Equal(t, "illiquid", out.Reason)

	out = liquidityGate(models.GateContext{Volume: cfg.MinChartVolume}, cfg)
	assert.Equal(t, models.StatusOpen, out.Status, "volume at the threshold passes")
	assert.Equal(t, 1.0, out.WeightMultiplier)

	out = liquidityGate(models.GateContext{Volume: cfg.MinChartVolume * 10}, cfg)
	assert.Equal(t, models.StatusOpen, out.Status)
}

func TestConfidenceGate(t *testing.T) {
	cfg := DefaultConfig()

	out := confidenceGate(models.GateContext{ImpactScore: cfg.ImpactEpsilon / 2}, cfg)
	assert.Equal(t, models.StatusClosed, out.Status)
	assert.Equal(t, 0.0, out.WeightMultiplier)

	// above epsilon but below 1: the log is negative, the floor closes it
	out = confidenceGate(models.GateContext{ImpactScore: 0.5}, cfg)
	assert.Equal(t, 0.0, out.WeightMultiplier)
	assert.Equal(t, models.StatusClosed, out.Status)

	out = confidenceGate(models.GateContext{ImpactScore: 1.8}, cfg)
	assert.InDelta(t, math.Log(1.8), out.WeightMultiplier, 1e-12)
	assert.Equal(t, models.StatusDampened, out.Status, "sub-unit multiplier reads as dampened")

	out = confidenceGate(models.GateContext{ImpactScore: math.E * math.E}, cfg)
	assert.InDelta(t, 2.0, out.WeightMultiplier, 1e-12)
	assert.Equal(t, models.StatusOpen, out.Status)
}

func TestConfidenceGateScaling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ImpactScaling = 2.5
	out := confidenceGate(models.GateContext{ImpactScore: 3.0}, cfg)
	assert.InDelta(t, 2.5*math.Log(3.0), out.WeightMultiplier, 1e-12)
}

func TestEventPriorityGate(t *testing.T) {
	cfg := DefaultConfig()

	quiet := models.GateContext{Importance: cfg.HighImportance}
	out := eventPriorityGate(models.SourceChart, quiet, cfg)
	assert.Equal(t, 1.0, out.WeightMultiplier, "at-threshold importance is a no-op")
	assert.Equal(t, models.StatusOpen, out.Status)

	busy := models.GateContext{Importance: cfg.HighImportance + 0.1}
	out = eventPriorityGate(models.SourceChart, busy, cfg)
	assert.Equal(t, cfg.ChartDampening, out.WeightMultiplier)
	assert.Equal(t, models.StatusDampened, out.Status)
	assert.Equal(t, "event priority", out.Reason)

	out = eventPriorityGate(models.SourceNews, busy, cfg)
	assert.Equal(t, cfg.NewsAmplification, out.WeightMultiplier)
	assert.Equal(t, models.StatusOpen, out.Status)
	assert.Equal(t, "event priority", out.Reason)
}

func TestApplyGatesSequencing(t *testing.T) {
	cfg := DefaultConfig()
	busy := models.GateContext{Volume: cfg.MinChartVolume * 2, Importance: 0.9}

	gs := applyGates(sig(models.SourceChart, -0.4, 1.0), busy, cfg)
	require.Len(t, gs.outcomes, 2)
	assert.Equal(t, GateLiquidity, gs.outcomes[0].GateName, "liquidity runs before event priority")
	assert.Equal(t, GateEventPriority, gs.outcomes[1].GateName)
	assert.InDelta(t, cfg.ChartDampening, gs.applied, 1e-12, "event factor multiplies the gated weight")
	assert.True(t, gs.dampened)

	illiquid := models.GateContext{Volume: 0, Importance: 0.9}
	gs = applyGates(sig(models.SourceChart, -0.4, 1.0), illiquid, cfg)
	assert.Equal(t, 0.0, gs.applied, "a closed base gate stays closed through dampening")

	gs = applyGates(sig(models.SourceNews, 0.9, 1.0), busy, cfg)
	require.Len(t, gs.outcomes, 1, "news has no base gate")
	assert.InDelta(t, cfg.NewsAmplification, gs.applied, 1e-12)
	assert.False(t, gs.dampened)

	gs = applyGates(sig(models.SourceGraph, 0.2, 0.8), models.GateContext{ImpactScore: 2.0, Importance: 0.9}, cfg)
	require.Len(t, gs.outcomes, 1, "event priority never touches graph")
	assert.Equal(t, GateConfidence, gs.outcomes[0].GateName)
}
