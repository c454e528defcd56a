package usecase

import (
	"time"

	"FinFuse/internal/domain/models"
	icache "FinFuse/internal/service/cache"
)

// SnapshotTable keeps the latest signal per ticker and source for a bounded
// TTL, so sources arriving seconds apart still fuse together while fresh.
// Within one ticker the last write per source wins.
type SnapshotTable struct {
	cache *icache.TTLCache
	ttl   time.Duration
}

func NewSnapshotTable(ttl time.Duration) *SnapshotTable {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotTable{cache: icache.NewTTLCache(), ttl: ttl}
}

func snapKey(ticker string, src models.SignalSource) string {
	return "snap:" + ticker + ":" + string(src)
}

// Merge stores the incoming signals and returns the live snapshot for the
// ticker in fusion order.
func (t *SnapshotTable) Merge(ticker string, signals []models.Signal) []models.Signal {
	for _, s := range signals {
		t.cache.Set(snapKey(ticker, s.Source), s, t.ttl)
	}
	return t.Live(ticker)
}

// Live returns the unexpired signals for ticker in fusion order.
func (t *SnapshotTable) Live(ticker string) []models.Signal {
	out := make([]models.Signal, 0, len(models.FusionOrder))
	for _, src := range models.FusionOrder {
		if v, ok := t.cache.Get(snapKey(ticker, src)); ok {
			if s, ok := v.(models.Signal); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
