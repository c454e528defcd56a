package service

import (
	"context"

	"FinFuse/internal/domain/models"
)

// ContextProvider fetches the market state gates evaluate against, for
// envelopes that arrive without one.
type ContextProvider interface {
	Snapshot(ctx context.Context, ticker string) (models.GateContext, error)
}
