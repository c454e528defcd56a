package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	domsvc "FinFuse/internal/domain/service"
	"FinFuse/internal/services/fusion"
)

// FuseUseCase runs one fusion call: resolve the gate context, fuse, record
// metrics. The engine itself stays pure; everything stateful lives here.
type FuseUseCase struct {
	engine   *fusion.Engine
	provider domsvc.ContextProvider
	metrics  drepo.Metrics
}

func NewFuseUseCase(engine *fusion.Engine, provider domsvc.ContextProvider, metrics drepo.Metrics) *FuseUseCase {
	return &FuseUseCase{engine: engine, provider: provider, metrics: metrics}
}

type FuseParams struct {
	Ticker  string
	Signals []models.Signal
	Context *models.ContextPayload // nil asks the context provider
}

func (uc *FuseUseCase) Fuse(ctx context.Context, p FuseParams) (*models.TradingIntent, error) {
	if p.Ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}

	start := time.Now()

	var gctx models.GateContext
	if p.Context != nil {
		gctx = p.Context.GateContext()
	} else if uc.provider != nil {
		if snap, err := uc.provider.Snapshot(ctx, p.Ticker); err == nil {
			gctx = snap
		}
	}

	intent, err := uc.engine.Fuse(p.Ticker, p.Signals, gctx)
	if err != nil {
		uc.metrics.RecordError("fuse")
		return nil, err
	}

	uc.metrics.RecordComposite(p.Ticker, intent.CompositeScore)
	uc.metrics.RecordLatency("fuse", time.Since(start).Seconds())
	return intent, nil
}
