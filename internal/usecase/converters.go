package usecase

import (
	"FinFuse/internal/domain/models"
	"FinFuse/pkg/util"
)

// SignalsFromPayloads converts wire payloads to domain signals. Unknown
// sources and unparseable timestamps pass through as zero values so the
// engine rejects them with a precise error instead of this layer guessing.
func SignalsFromPayloads(payloads []models.SignalPayload) []models.Signal {
	signals := make([]models.Signal, 0, len(payloads))
	for _, p := range payloads {
		src, ok := models.ParseSource(p.Source)
		if !ok {
			src = models.SignalSource(p.Source)
		}
		observed, _ := util.ParseTime(p.ObservedAt)
		signals = append(signals, models.Signal{
			Source:     src,
			RawScore:   p.RawScore,
			Confidence: p.Confidence,
			ObservedAt: observed,
		})
	}
	return signals
}
