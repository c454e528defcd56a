package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/services/fusion"
)

func newTestEngine(t *testing.T) *fusion.Engine {
	t.Helper()
	e, err := fusion.NewEngine(fusion.DefaultConfig())
	require.NoError(t, err)
	return e
}

// openPayload opens every gate: deep volume, unit impact multiplier, calm
// importance and volatility.
func openPayload() *models.ContextPayload {
	return &models.ContextPayload{Volume: 250000, ImpactScore: math.E, Importance: 0.5, Volatility: 0.2}
}

func bullishSignals() []models.Signal {
	return []models.Signal{
		snapSig(models.SourceNews, 0.8),
		snapSig(models.SourceChart, 0.6),
		snapSig(models.SourceGraph, 0.4),
	}
}

func TestFuseUsesExplicitContext(t *testing.T) {
	provider := &mockProvider{}
	uc := NewFuseUseCase(newTestEngine(t), provider, newMockMetrics())

	intent, err := uc.Fuse(context.Background(), FuseParams{
		Ticker:  "AAPL",
		Signals: bullishSignals(),
		Context: openPayload(),
	})
	require.NoError(t, err)

	assert.Equal(t, models.DirectionBuy, intent.Direction)
	assert.Len(t, intent.Contributions, 3)
	assert.Empty(t, intent.GatesTriggered)
	assert.Equal(t, 0, provider.callCount(), "explicit context skips the provider")
}

func TestFuseAsksProviderWhenContextAbsent(t *testing.T) {
	provider := &mockProvider{gctx: models.GateContext{Volume: 250000, ImpactScore: math.E, Importance: 0.5}}
	uc := NewFuseUseCase(newTestEngine(t), provider, newMockMetrics())

	intent, err := uc.Fuse(context.Background(), FuseParams{
		Ticker:  "AAPL",
		Signals: bullishSignals(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.callCount())
	assert.Empty(t, intent.GatesTriggered, "provider context opened the gates")
}

func TestFuseProviderFailureFallsBackToZeroContext(t *testing.T) {
	provider := &mockProvider{err: errBackendDown}
	uc := NewFuseUseCase(newTestEngine(t), provider, newMockMetrics())

	intent, err := uc.Fuse(context.Background(), FuseParams{
		Ticker:  "AAPL",
		Signals: bullishSignals(),
	})
	require.NoError(t, err, "zero context still fuses, just with closed gates")

	gates := intent.Wire().GatesTriggered
	assert.Contains(t, gates, fusion.GateLiquidity)
	assert.Contains(t, gates, fusion.GateConfidence)
}

func TestFuseHonorsExplicitZeroContext(t *testing.T) {
	// A present-but-zero context must not trigger a provider lookup.
	provider := &mockProvider{gctx: models.GateContext{Volume: 250000}}
	uc := NewFuseUseCase(newTestEngine(t), provider, newMockMetrics())

	intent, err := uc.Fuse(context.Background(), FuseParams{
		Ticker:  "AAPL",
		Signals: bullishSignals(),
		Context: &models.ContextPayload{},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, provider.callCount())
	assert.Contains(t, intent.Wire().GatesTriggered, fusion.GateLiquidity)
}

func TestFuseRequiresTicker(t *testing.T) {
	uc := NewFuseUseCase(newTestEngine(t), &mockProvider{}, newMockMetrics())
	_, err := uc.Fuse(context.Background(), FuseParams{Signals: bullishSignals()})
	assert.Error(t, err)
}

func TestFuseRecordsMetrics(t *testing.T) {
	m := newMockMetrics()
	uc := NewFuseUseCase(newTestEngine(t), &mockProvider{}, m)

	_, err := uc.Fuse(context.Background(), FuseParams{
		Ticker:  "AAPL",
		Signals: bullishSignals(),
		Context: openPayload(),
	})
	require.NoError(t, err)
	assert.Contains(t, m.composites, "AAPL")
	assert.Equal(t, 1, m.latencies["fuse"])

	// no signals at all is an engine error
	_, err = uc.Fuse(context.Background(), FuseParams{Ticker: "AAPL", Context: openPayload()})
	require.Error(t, err)
	var ins *fusion.InsufficientSignalError
	assert.ErrorAs(t, err, &ins)
	assert.Equal(t, 1, m.errCount("fuse"))
}
