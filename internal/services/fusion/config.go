package fusion

import "math"

// Config carries every gate threshold and override policy for one fusion run.
// It travels with the call; the engine keeps no process-wide state.
type Config struct {
	MinChartVolume    float64 // liquidity gate: volume below this closes chart
	ImpactEpsilon     float64 // confidence gate: impact below this closes graph
	ImpactScaling     float64 // confidence gate: factor applied to ln(impact)
	HighImportance    float64 // event priority gate: trigger threshold
	ChartDampening    float64 // event priority gate: chart factor when triggered
	NewsAmplification float64 // event priority gate: news factor when triggered
	DisagreementFloor float64 // safety override: meaningful contribution magnitude
	HighVolatility    float64 // safety override: volatility trigger threshold
	ConfidenceCeiling float64 // safety override: confidence cap when triggered
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		MinChartVolume:    100000,
		ImpactEpsilon:     0.05,
		ImpactScaling:     1.0,
		HighImportance:    0.7,
		ChartDampening:    0.5,
		NewsAmplification: 1.5,
		DisagreementFloor: 0.2,
		HighVolatility:    0.6,
		ConfidenceCeiling: 0.3,
	}
}

// Validate rejects configurations that would make gate behavior undefined.
// The returned error is always a *ConfigurationError.
func (c Config) Validate() error {
	if notFinite(c.MinChartVolume) || c.MinChartVolume < 0 {
		return &ConfigurationError{Field: "min_chart_volume", Reason: "must be finite and >= 0"}
	}
	if notFinite(c.ImpactEpsilon) || c.ImpactEpsilon <= 0 {
		return &ConfigurationError{Field: "impact_epsilon", Reason: "must be finite and > 0"}
	}
	if notFinite(c.ImpactScaling) || c.ImpactScaling <= 0 {
		return &ConfigurationError{Field: "impact_scaling", Reason: "must be finite and > 0"}
	}
	if notFinite(c.HighImportance) || c.HighImportance < 0 {
		return &ConfigurationError{Field: "high_importance", Reason: "must be finite and >= 0"}
	}
	if notFinite(c.ChartDampening) || c.ChartDampening <= 0 || c.ChartDampening >= 1 {
		return &ConfigurationError{Field: "chart_dampening", Reason: "must be inside (0, 1)"}
	}
	if notFinite(c.NewsAmplification) || c.NewsAmplification < 1 {
		return &ConfigurationError{Field: "news_amplification", Reason: "must be finite and >= 1"}
	}
	if notFinite(c.DisagreementFloor) || c.DisagreementFloor < 0 {
		return &ConfigurationError{Field: "disagreement_floor", Reason: "must be finite and >= 0"}
	}
	if notFinite(c.HighVolatility) || c.HighVolatility < 0 {
		return &ConfigurationError{Field: "high_volatility", Reason: "must be finite and >= 0"}
	}
	if notFinite(c.ConfidenceCeiling) || c.ConfidenceCeiling < 0 || c.ConfidenceCeiling > 1 {
		return &ConfigurationError{Field: "confidence_ceiling", Reason: "must be within [0, 1]"}
	}
	return nil
}

func notFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
