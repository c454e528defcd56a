package usecase

import (
	"context"

	applogger "FinFuse/pkg/logger"
	pkgqueue "FinFuse/pkg/queue"
)

// RecordIntentJob replays intent writes that failed on the hot path. The
// queue retries it with backoff and dead-letters what keeps failing.
type RecordIntentJob struct {
	proc *IntentProcessor
	l    *applogger.Logger
}

func NewRecordIntentJob(proc *IntentProcessor, l *applogger.Logger) *RecordIntentJob {
	return &RecordIntentJob{proc: proc, l: l}
}

func (j *RecordIntentJob) Name() string { return "record-intent" }

func (j *RecordIntentJob) Type() string { return MsgTypeRecordIntent }

func (j *RecordIntentJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := pkgqueue.ParsePayload[RecordIntentPayload](payload)
	if err != nil {
		return err
	}
	if err := j.proc.Record(ctx, &p.Intent); err != nil {
		if j.l != nil {
			j.l.Warn("intent replay failed", applogger.String("ticker", p.Intent.Ticker), applogger.Error(err))
		}
		return err
	}
	return nil
}

var _ pkgqueue.Job = (*RecordIntentJob)(nil)
