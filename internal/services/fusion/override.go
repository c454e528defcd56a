package fusion

import (
	"fmt"
	"math"

	"FinFuse/internal/domain/models"
)

// overrideTriggered reports whether gated contributions disagree in sign with
// meaningful magnitude on both sides while volatility is high. Contributions
// already silenced by a gate cannot trip it.
func overrideTriggered(contribs []models.Contribution, gctx models.GateContext, cfg Config) bool {
	if gctx.Volatility <= cfg.HighVolatility {
		return false
	}
	var up, down bool
	for _, c := range contribs {
		if math.Abs(c.ContributionValue) < cfg.DisagreementFloor {
			continue
		}
		if c.ContributionValue > 0 {
			up = true
		} else if c.ContributionValue < 0 {
			down = true
		}
	}
	return up && down
}

// overrideOutcome is the synthetic gate entry recorded when the override
// fires. Contribution values stay untouched; only direction and confidence
// are forced.
func overrideOutcome(gctx models.GateContext, cfg Config) models.GateOutcome {
	return models.GateOutcome{
		GateName:         GateSafetyOverride,
		WeightMultiplier: 0,
		Status:           models.StatusClosed,
		Reason: fmt.Sprintf("conflicting signals with volatility %.2f > %.2f",
			gctx.Volatility, cfg.HighVolatility),
	}
}
