package fusion

import (
	"math"

	"FinFuse/internal/domain/models"
)

// ValidateSignal rejects out-of-domain signals. Rejection is the contract:
// a raw score of 1.2 is a producer bug the engine must surface, not clamp.
func ValidateSignal(s models.Signal) error {
	if !models.IsValidSource(s.Source) {
		return &InvalidSignalError{Source: s.Source, Field: "source", Reason: "is not a known source"}
	}
	if notFinite(s.RawScore) || s.RawScore < -1 || s.RawScore > 1 {
		return &InvalidSignalError{Source: s.Source, Field: "raw_score", Reason: "must be within [-1, 1]"}
	}
	if notFinite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return &InvalidSignalError{Source: s.Source, Field: "confidence", Reason: "must be within [0, 1]"}
	}
	if s.ObservedAt.IsZero() {
		return &InvalidSignalError{Source: s.Source, Field: "observed_at", Reason: "is required"}
	}
	return nil
}

// orderSignals returns the present signals in the fixed news, chart, graph
// order. Input order must never influence the output.
func orderSignals(signals []models.Signal) []models.Signal {
	ordered := make([]models.Signal, 0, len(signals))
	for _, src := range models.FusionOrder {
		for _, s := range signals {
			if s.Source == src {
				ordered = append(ordered, s)
			}
		}
	}
	return ordered
}

// Fuse runs one complete fusion: validate, gate, weigh, aggregate, override,
// attribute. It is pure and synchronous; identical inputs yield bit-identical
// intents. An error means no intent, there is no partial success.
func Fuse(ticker string, signals []models.Signal, gctx models.GateContext, cfg Config) (*models.TradingIntent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, &InsufficientSignalError{Ticker: ticker}
	}
	seen := make(map[models.SignalSource]bool, len(signals))
	for _, s := range signals {
		if err := ValidateSignal(s); err != nil {
			return nil, err
		}
		if seen[s.Source] {
			return nil, &InvalidSignalError{Source: s.Source, Field: "source", Reason: "appears more than once"}
		}
		seen[s.Source] = true
	}

	gated := make([]gatedSignal, 0, len(signals))
	for _, s := range orderSignals(signals) {
		gated = append(gated, applyGates(s, gctx, cfg))
	}

	contribs := make([]models.Contribution, 0, len(gated))
	for _, gs := range gated {
		contribs = append(contribs, contributionOf(gs))
	}

	composite := compositeOf(contribs)
	confidence := blendedConfidence(contribs)
	direction := directionFor(composite)
	triggered := triggeredOutcomes(gated)

	if overrideTriggered(contribs, gctx, cfg) {
		direction = models.DirectionHold
		confidence = math.Min(confidence, cfg.ConfidenceCeiling)
		triggered = append(triggered, overrideOutcome(gctx, cfg))
	}

	return &models.TradingIntent{
		Ticker:         ticker,
		Direction:      direction,
		Confidence:     confidence,
		CompositeScore: composite,
		Contributions:  contribs,
		GatesTriggered: triggered,
		SizeAdjustment: 1.0,
	}, nil
}

// triggeredOutcomes collects every non-OPEN gate outcome in evaluation order.
func triggeredOutcomes(gated []gatedSignal) []models.GateOutcome {
	var out []models.GateOutcome
	for _, gs := range gated {
		for _, o := range gs.outcomes {
			if o.Status != models.StatusOpen {
				out = append(out, o)
			}
		}
	}
	return out
}

// Engine binds a validated config so services fail fast at startup instead of
// on the first fuse call. The config is copied in and never mutated.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg once and returns an engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the bound configuration.
func (e *Engine) Config() Config { return e.cfg }

// Fuse runs one fusion with the engine's bound config.
func (e *Engine) Fuse(ticker string, signals []models.Signal, gctx models.GateContext) (*models.TradingIntent, error) {
	return Fuse(ticker, signals, gctx, e.cfg)
}
