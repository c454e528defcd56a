package usecase

import (
	"context"
	"fmt"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/services/fusion"
)

// SignalIngest is the live fuse path: merge the envelope into the snapshot
// table, fuse the merged live snapshot, hand the intent to the processor.
// Both the feed collector and the Kafka consumer end here.
type SignalIngest struct {
	snapshots *SnapshotTable
	fuse      *FuseUseCase
	proc      *IntentProcessor
	metrics   drepo.Metrics
}

func NewSignalIngest(snapshots *SnapshotTable, fuse *FuseUseCase, proc *IntentProcessor, metrics drepo.Metrics) *SignalIngest {
	return &SignalIngest{snapshots: snapshots, fuse: fuse, proc: proc, metrics: metrics}
}

// Process fuses one envelope against the merged live snapshot for its
// ticker. Signals are validated before the merge so a bad envelope never
// lingers in the table.
func (si *SignalIngest) Process(ctx context.Context, env *models.SignalEnvelope) error {
	if env == nil {
		return fmt.Errorf("envelope is nil")
	}

	converted := SignalsFromPayloads(env.Signals)
	for _, s := range converted {
		if err := fusion.ValidateSignal(s); err != nil {
			si.metrics.RecordError("ingest_invalid")
			return err
		}
	}

	merged := si.snapshots.Merge(env.Ticker, converted)
	intent, err := si.fuse.Fuse(ctx, FuseParams{
		Ticker:  env.Ticker,
		Signals: merged,
		Context: env.Context,
	})
	if err != nil {
		return err
	}
	return si.proc.Process(ctx, intent)
}
