package models

import (
	"strings"
	"time"
)

// SignalSource identifies which upstream analysis produced a signal.
type SignalSource string

const (
	SourceNews  SignalSource = "news"
	SourceChart SignalSource = "chart"
	SourceGraph SignalSource = "graph"
)

// FusionOrder is the fixed source order used wherever a deterministic
// sequence matters (attribution rows, wire output, gate evaluation).
var FusionOrder = [3]SignalSource{SourceNews, SourceChart, SourceGraph}

// IsValidSource returns true if src is a supported signal source.
func IsValidSource(src SignalSource) bool {
	switch src {
	case SourceNews, SourceChart, SourceGraph:
		return true
	default:
		return false
	}
}

// ParseSource converts a raw string to a SignalSource.
func ParseSource(s string) (SignalSource, bool) {
	src := SignalSource(strings.ToLower(strings.TrimSpace(s)))
	if IsValidSource(src) {
		return src, true
	}
	return "", false
}

// Signal is one source's assessment of one ticker at one point in time.
type Signal struct {
	Source     SignalSource
	RawScore   float64   // [-1, 1]; negative bearish, positive bullish
	Confidence float64   // [0, 1]; the source's own certainty
	ObservedAt time.Time // when the source produced the assessment
}

// GateContext is the market state one fusion call evaluates gates against.
// It is transient: assembled per call, never stored between calls.
type GateContext struct {
	Volume      float64 // traded volume, liquidity gate
	ImpactScore float64 // graph edge impact, confidence gate
	Importance  float64 // news event importance, event priority gate
	Volatility  float64 // realized volatility, safety override
}
