package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/pkg/util"
)

// maxQueryWindow caps how far back one intents query may reach.
const maxQueryWindow = 30 * 24 * time.Hour

// IntentsQueryUseCase reads back stored intents for one ticker.
type IntentsQueryUseCase struct {
	store drepo.IntentStore
}

func NewIntentsQueryUseCase(store drepo.IntentStore) *IntentsQueryUseCase {
	return &IntentsQueryUseCase{store: store}
}

type GetIntentsParams struct {
	Ticker string
	From   time.Time
	To     time.Time
	Limit  int
}

type GetIntentsResult struct {
	Ticker  string
	From    time.Time
	To      time.Time
	Count   int
	Intents []*models.StoredIntent
}

func (uc *IntentsQueryUseCase) GetIntents(ctx context.Context, p GetIntentsParams) (*GetIntentsResult, error) {
	if p.Ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if p.To.IsZero() {
		p.To = time.Now().UTC()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-24 * time.Hour)
	}
	p.From, p.To = util.ClampRange(p.From, p.To, maxQueryWindow)
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}

	rows, err := uc.store.Query(ctx, p.Ticker, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query intents: %w", err)
	}

	return &GetIntentsResult{
		Ticker:  p.Ticker,
		From:    p.From,
		To:      p.To,
		Count:   len(rows),
		Intents: rows,
	}, nil
}
