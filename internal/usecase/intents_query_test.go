package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
)

func storedRow(ticker string, at time.Time) *models.StoredIntent {
	return &models.StoredIntent{At: at, Ticker: ticker, Direction: models.DirectionBuy, SizeAdj: 1.0}
}

func TestGetIntentsDefaultsWindow(t *testing.T) {
	store := &mockStore{rows: []*models.StoredIntent{storedRow("AAPL", time.Now().UTC())}}
	uc := NewIntentsQueryUseCase(store)

	res, err := uc.GetIntents(context.Background(), GetIntentsParams{Ticker: "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Count)
	assert.WithinDuration(t, res.To.Add(-24*time.Hour), res.From, time.Second, "default window is one day back")
}

func TestGetIntentsClampsWindowAndLimit(t *testing.T) {
	store := &mockStore{}
	uc := NewIntentsQueryUseCase(store)

	to := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	from := to.Add(-90 * 24 * time.Hour)
	res, err := uc.GetIntents(context.Background(), GetIntentsParams{Ticker: "AAPL", From: from, To: to, Limit: 5000})
	require.NoError(t, err)

	assert.Equal(t, to.Add(-maxQueryWindow), res.From, "window capped at 30 days")

	// reversed bounds get swapped rather than rejected
	res, err = uc.GetIntents(context.Background(), GetIntentsParams{Ticker: "AAPL", From: to, To: to.Add(-time.Hour)})
	require.NoError(t, err)
	assert.True(t, res.From.Before(res.To))
}

func TestGetIntentsRequiresTicker(t *testing.T) {
	uc := NewIntentsQueryUseCase(&mockStore{})
	_, err := uc.GetIntents(context.Background(), GetIntentsParams{})
	assert.Error(t, err)
}

func TestGetIntentsStoreError(t *testing.T) {
	uc := NewIntentsQueryUseCase(&mockStore{failErr: errBackendDown})
	_, err := uc.GetIntents(context.Background(), GetIntentsParams{Ticker: "AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)
}
