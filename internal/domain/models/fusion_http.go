package models

// Requests for the fusion HTTP endpoints. Defined in domain for consistency and reuse.

// SignalPayload is one signal the way a producer supplies it on the wire.
type SignalPayload struct {
	Source     string  `json:"source" validate:"required"`
	RawScore   float64 `json:"raw_score"`
	Confidence float64 `json:"confidence"`
	ObservedAt string  `json:"observed_at" validate:"required"`
}

// ContextPayload mirrors GateContext on the wire. Missing fields stay zero
// and the gates decide what that means.
type ContextPayload struct {
	Volume      float64 `json:"volume"`
	ImpactScore float64 `json:"impact_score"`
	Importance  float64 `json:"importance"`
	Volatility  float64 `json:"volatility"`
}

// GateContext converts the wire payload to the engine's context.
func (p ContextPayload) GateContext() GateContext {
	return GateContext{
		Volume:      p.Volume,
		ImpactScore: p.ImpactScore,
		Importance:  p.Importance,
		Volatility:  p.Volatility,
	}
}

// FuseRequest carries one fusion call. A nil Context means the caller has
// none and the context service should be asked; an explicit zero context is
// honored as sent.
type FuseRequest struct {
	Ticker  string          `json:"ticker" validate:"required"`
	Signals []SignalPayload `json:"signals" validate:"max=3,dive"`
	Context *ContextPayload `json:"context"`
}

type FuseBatchRequest struct {
	Requests []FuseRequest `json:"requests" validate:"required,min=1,max=100,dive"`
}

type IntentsRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
