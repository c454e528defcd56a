package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
)

// FuseBatchUseCase fuses several tickers concurrently. The engine is pure,
// so one goroutine per request needs no coordination beyond the collect
// channel.
type FuseBatchUseCase struct {
	fuse    *FuseUseCase
	timeout time.Duration
}

func NewFuseBatchUseCase(fuse *FuseUseCase) *FuseBatchUseCase {
	return &FuseBatchUseCase{fuse: fuse, timeout: 10 * time.Second}
}

type FuseBatchResult struct {
	Intents []*models.TradingIntent
	Errors  map[string]string // failed ticker -> reason
}

func (uc *FuseBatchUseCase) FuseBatch(ctx context.Context, reqs []FuseParams) (*FuseBatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no requests")
	}

	// Overall timeout
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		idx    int
		ticker string
		intent *models.TradingIntent
		err    error
	}
	ch := make(chan item, len(reqs))
	var wg sync.WaitGroup

	for i, r := range reqs {
		wg.Add(1)
		go func(i int, r FuseParams) {
			defer wg.Done()
			intent, err := uc.fuse.Fuse(ctx, r)
			ch <- item{idx: i, ticker: r.Ticker, intent: intent, err: err}
		}(i, r)
	}

	go func() { wg.Wait(); close(ch) }()

	ordered := make([]*models.TradingIntent, len(reqs))
	res := &FuseBatchResult{Errors: map[string]string{}}
	for it := range ch {
		if it.err != nil {
			res.Errors[it.ticker] = it.err.Error()
			continue
		}
		ordered[it.idx] = it.intent
	}

	// Keep request order for whatever succeeded.
	res.Intents = make([]*models.TradingIntent, 0, len(reqs))
	for _, in := range ordered {
		if in != nil {
			res.Intents = append(res.Intents, in)
		}
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}
