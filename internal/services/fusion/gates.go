package fusion

import (
	"fmt"
	"math"

	"FinFuse/internal/domain/models"
)

// Gate names as they appear in gatesTriggered and on the wire. The set is
// closed: a new gate variant means a new constant and a new case in
// applyGates, nothing in the aggregation changes.
const (
	GateLiquidity      = "LiquidityGate"
	GateConfidence     = "ConfidenceGate"
	GateEventPriority  = "EventPriorityGate"
	GateSafetyOverride = "SafetyOverride"
)

// statusFor derives an outcome status from its multiplier. Keeping the rule
// in one place is what guarantees CLOSED iff multiplier == 0.
func statusFor(mult float64, dampened bool) models.GateStatus {
	switch {
	case mult == 0:
		return models.StatusClosed
	case mult < 1 || dampened:
		return models.StatusDampened
	default:
		return models.StatusOpen
	}
}

// liquidityGate closes the chart signal on thin volume.
func liquidityGate(gctx models.GateContext, cfg Config) models.GateOutcome {
	if gctx.Volume < cfg.MinChartVolume {
		return models.GateOutcome{
			GateName:         GateLiquidity,
			WeightMultiplier: 0,
			Status:           models.StatusClosed,
			Reason:           "illiquid",
		}
	}
	return models.GateOutcome{
		GateName:         GateLiquidity,
		WeightMultiplier: 1,
		Status:           models.StatusOpen,
		Reason:           fmt.Sprintf("volume %.0f >= %.0f", gctx.Volume, cfg.MinChartVolume),
	}
}

// confidenceGate scales the graph signal by the log of its impact score.
// A score below epsilon closes it; a score whose log floors the multiplier
// to 0 also reports CLOSED, since status follows the multiplier.
func confidenceGate(gctx models.GateContext, cfg Config) models.GateOutcome {
	if gctx.ImpactScore < cfg.ImpactEpsilon {
		return models.GateOutcome{
			GateName:         GateConfidence,
			WeightMultiplier: 0,
			Status:           models.StatusClosed,
			Reason:           fmt.Sprintf("impact %.3f < epsilon %.3f", gctx.ImpactScore, cfg.ImpactEpsilon),
		}
	}
	mult := cfg.ImpactScaling * math.Log(gctx.ImpactScore)
	if mult < 0 {
		mult = 0
	}
	return models.GateOutcome{
		GateName:         GateConfidence,
		WeightMultiplier: mult,
		Status:           statusFor(mult, false),
		Reason:           fmt.Sprintf("impact %.3f, scaling %.2f", gctx.ImpactScore, cfg.ImpactScaling),
	}
}

// eventPriorityGate reweights news and chart while a high-importance event is
// in play; below the threshold it is a neutral no-op. It runs after the base
// gates and its factor multiplies the already-gated value.
func eventPriorityGate(src models.SignalSource, gctx models.GateContext, cfg Config) models.GateOutcome {
	if gctx.Importance <= cfg.HighImportance {
		return models.GateOutcome{
			GateName:         GateEventPriority,
			WeightMultiplier: 1,
			Status:           models.StatusOpen,
			Reason:           fmt.Sprintf("importance %.2f <= %.2f", gctx.Importance, cfg.HighImportance),
		}
	}
	if src == models.SourceChart {
		return models.GateOutcome{
			GateName:         GateEventPriority,
			WeightMultiplier: cfg.ChartDampening,
			Status:           statusFor(cfg.ChartDampening, true),
			Reason:           "event priority",
		}
	}
	return models.GateOutcome{
		GateName:         GateEventPriority,
		WeightMultiplier: cfg.NewsAmplification,
		Status:           statusFor(cfg.NewsAmplification, false),
		Reason:           "event priority",
	}
}

// gatedSignal is one signal with every gate applied, ready to contribute.
type gatedSignal struct {
	sig      models.Signal
	applied  float64 // final weight: base multiplier times event factor
	dampened bool    // true when any gate explicitly marked dampening
	outcomes []models.GateOutcome
}

// applyGates runs the closed gate set against one signal. Liquidity and
// confidence are signal-local and order-insensitive; event priority comes
// last because it modifies the chart weight relative to its gated value.
func applyGates(s models.Signal, gctx models.GateContext, cfg Config) gatedSignal {
	gs := gatedSignal{sig: s, applied: 1}
	switch s.Source {
	case models.SourceChart:
		out := liquidityGate(gctx, cfg)
		gs.applied *= out.WeightMultiplier
		gs.outcomes = append(gs.outcomes, out)
	case models.SourceGraph:
		out := confidenceGate(gctx, cfg)
		gs.applied *= out.WeightMultiplier
		gs.outcomes = append(gs.outcomes, out)
	}
	if s.Source == models.SourceNews || s.Source == models.SourceChart {
		out := eventPriorityGate(s.Source, gctx, cfg)
		gs.applied *= out.WeightMultiplier
		gs.dampened = gs.dampened || out.Status == models.StatusDampened
		gs.outcomes = append(gs.outcomes, out)
	}
	return gs
}
