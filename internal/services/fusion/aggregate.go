package fusion

import (
	"math"

	"FinFuse/internal/domain/models"
)

// contributionOf folds a gated signal into its attribution row. A missing
// source simply has no row; absence is not zero confidence.
func contributionOf(gs gatedSignal) models.Contribution {
	return models.Contribution{
		Source:            gs.sig.Source,
		RawScore:          gs.sig.RawScore,
		Confidence:        gs.sig.Confidence,
		AppliedWeight:     gs.applied,
		GateStatus:        statusFor(gs.applied, gs.dampened),
		ContributionValue: gs.sig.RawScore * gs.sig.Confidence * gs.applied,
	}
}

// compositeOf sums contribution values in attribution order. The sum IS the
// composite score, so the attribution can never drift from it.
func compositeOf(contribs []models.Contribution) float64 {
	var sum float64
	for _, c := range contribs {
		sum += c.ContributionValue
	}
	return sum
}

// blendedConfidence averages per-source confidence weighted by contribution
// magnitude. A silenced or zero-confidence source carries no weight; when
// every magnitude is zero there is nothing to be confident about and the
// result is 0.
func blendedConfidence(contribs []models.Contribution) float64 {
	var num, den float64
	for _, c := range contribs {
		w := math.Abs(c.ContributionValue)
		num += c.Confidence * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// directionFor maps a composite score onto a recommendation.
func directionFor(composite float64) models.Direction {
	switch {
	case composite > 0:
		return models.DirectionBuy
	case composite < 0:
		return models.DirectionSell
	default:
		return models.DirectionHold
	}
}
