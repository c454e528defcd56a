package usecase

import (
	"context"

	applogger "FinFuse/pkg/logger"
	pkgqueue "FinFuse/pkg/queue"
)

// LogSink delivers one payload to a topic. *pkgkafka.Producer satisfies it.
type LogSink interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// LogForwardJob ships aggregated error-log batches from the replay queue to
// the log topic. The logger only enqueues; delivery failures are retried by
// the queue instead of stalling whatever emitted the log line.
type LogForwardJob struct {
	sink  LogSink
	topic string
	l     *applogger.Logger
}

func NewLogForwardJob(sink LogSink, topic string, l *applogger.Logger) *LogForwardJob {
	return &LogForwardJob{sink: sink, topic: topic, l: l}
}

func (j *LogForwardJob) Name() string { return "forward-logs" }

// Type doubles as the topic the log collector publishes under.
func (j *LogForwardJob) Type() string { return j.topic }

func (j *LogForwardJob) Handle(ctx context.Context, payload interface{}) error {
	batch, err := pkgqueue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return err
	}
	if len(*batch) == 0 {
		return nil
	}
	if err := j.sink.Publish(ctx, j.topic, nil, *batch); err != nil {
		if j.l != nil {
			j.l.Warn("log forward failed",
				applogger.Int("entries", len(*batch)),
				applogger.Error(err))
		}
		return err
	}
	return nil
}

var _ pkgqueue.Job = (*LogForwardJob)(nil)
