package models

import (
	"fmt"
	"time"
)

// Direction is the engine's recommendation for a ticker.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// GateStatus describes how strongly a gate let a signal through.
type GateStatus string

const (
	StatusOpen     GateStatus = "OPEN"
	StatusDampened GateStatus = "DAMPENED"
	StatusClosed   GateStatus = "CLOSED"
)

// GateOutcome is the result of evaluating one gate against one signal.
// Status always derives from the multiplier: CLOSED iff it is 0, DAMPENED
// when it sits in (0, 1) or the gate marked dampening, OPEN otherwise.
type GateOutcome struct {
	GateName         string
	WeightMultiplier float64 // >= 0; 0 silences the signal entirely
	Status           GateStatus
	Reason           string // value-vs-threshold text for the audit trail
}

// Contribution is the net effect of one source on the composite score.
type Contribution struct {
	Source            SignalSource
	RawScore          float64
	Confidence        float64
	AppliedWeight     float64 // product of every gate multiplier
	GateStatus        GateStatus
	ContributionValue float64 // RawScore * Confidence * AppliedWeight
}

// Rationale renders the contribution as a signed value plus its breakdown,
// so the explanation is always derived from the same numbers it explains.
func (c Contribution) Rationale() string {
	s := fmt.Sprintf("%+.4f = %.4f raw x %.4f conf x %.4f weight",
		c.ContributionValue, c.RawScore, c.Confidence, c.AppliedWeight)
	if c.GateStatus != StatusOpen {
		s += fmt.Sprintf(" (%s)", c.GateStatus)
	}
	return s
}

// TradingIntent is the immutable output of one fusion run. It is advisory:
// SizeAdjustment stays 1.0 and nothing here carries execution authority.
// It holds no wall-clock field so identical inputs stay bit-identical.
type TradingIntent struct {
	Ticker         string
	Direction      Direction
	Confidence     float64        // composite confidence in [0, 1]
	CompositeScore float64        // exact sum of ContributionValue over Contributions
	Contributions  []Contribution // ordered news, chart, graph; absent sources skipped
	GatesTriggered []GateOutcome  // every non-OPEN outcome plus any safety override
	SizeAdjustment float64        // always 1.0
}

// IntentWire is the JSON shape consumers receive, over Kafka and HTTP alike.
type IntentWire struct {
	Ticker             string            `json:"ticker"`
	Direction          Direction         `json:"direction"`
	Confidence         float64           `json:"confidence"`
	Rationale          map[string]string `json:"rationale"`
	GatesTriggered     []string          `json:"gates_triggered"`
	RecommendedSizeAdj float64           `json:"recommended_size_adj"`
}

// Wire renders the intent into its transport form. Gate names keep their
// first-trigger order and are listed once each.
func (t *TradingIntent) Wire() IntentWire {
	rationale := make(map[string]string, len(t.Contributions))
	for _, c := range t.Contributions {
		rationale[string(c.Source)] = c.Rationale()
	}
	gates := make([]string, 0, len(t.GatesTriggered))
	for _, g := range t.GatesTriggered {
		if !containsName(gates, g.GateName) {
			gates = append(gates, g.GateName)
		}
	}
	return IntentWire{
		Ticker:             t.Ticker,
		Direction:          t.Direction,
		Confidence:         t.Confidence,
		Rationale:          rationale,
		GatesTriggered:     gates,
		RecommendedSizeAdj: t.SizeAdjustment,
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// StoredIntent is one audit-store row: the wire fields plus ingestion time.
// The timestamp lives here and not on TradingIntent on purpose.
type StoredIntent struct {
	At         time.Time `json:"at"`
	Ticker     string    `json:"ticker"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Composite  float64   `json:"composite"`
	Rationale  string    `json:"rationale"` // wire rationale JSON as stored
	Gates      []string  `json:"gates_triggered"`
	SizeAdj    float64   `json:"recommended_size_adj"`
}
