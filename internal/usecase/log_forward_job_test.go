package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "FinFuse/pkg/logger"
)

type mockSink struct {
	topics  []string
	batches []int
	failErr error
}

func (s *mockSink) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.topics = append(s.topics, topic)
	if batch, ok := value.([]applogger.AggregatedLogEntry); ok {
		s.batches = append(s.batches, len(batch))
	}
	return nil
}

func TestLogForwardJobIdentity(t *testing.T) {
	j := NewLogForwardJob(&mockSink{}, "app.logs", nil)
	assert.Equal(t, "forward-logs", j.Name())
	assert.Equal(t, "app.logs", j.Type(), "type mirrors the collector topic")
}

func TestLogForwardJobShipsBatch(t *testing.T) {
	sink := &mockSink{}
	j := NewLogForwardJob(sink, "app.logs", nil)

	batch := []applogger.AggregatedLogEntry{
		{Level: "error", Message: "store write failed", Count: 3},
		{Level: "error", Message: "publish failed", Count: 1},
	}
	require.NoError(t, j.Handle(context.Background(), batch))
	require.Equal(t, []string{"app.logs"}, sink.topics)
	assert.Equal(t, []int{2}, sink.batches)
}

func TestLogForwardJobShipsBatchFromJSON(t *testing.T) {
	sink := &mockSink{}
	j := NewLogForwardJob(sink, "app.logs", nil)

	// the queue hands payloads back as decoded JSON arrays
	b, err := json.Marshal([]applogger.AggregatedLogEntry{{Level: "error", Message: "boom", Count: 2}})
	require.NoError(t, err)
	var raw []interface{}
	require.NoError(t, json.Unmarshal(b, &raw))

	require.NoError(t, j.Handle(context.Background(), raw))
	assert.Equal(t, []int{1}, sink.batches)
}

func TestLogForwardJobSkipsEmptyBatch(t *testing.T) {
	sink := &mockSink{}
	j := NewLogForwardJob(sink, "app.logs", nil)

	require.NoError(t, j.Handle(context.Background(), []applogger.AggregatedLogEntry{}))
	assert.Empty(t, sink.topics)
}

func TestLogForwardJobSurfacesPublishFailure(t *testing.T) {
	sink := &mockSink{failErr: errBackendDown}
	j := NewLogForwardJob(sink, "app.logs", nil)

	batch := []applogger.AggregatedLogEntry{{Level: "error", Message: "boom", Count: 1}}
	assert.Error(t, j.Handle(context.Background(), batch), "the queue decides on retry")
}

func TestLogForwardJobRejectsBadPayload(t *testing.T) {
	j := NewLogForwardJob(&mockSink{}, "app.logs", nil)
	assert.Error(t, j.Handle(context.Background(), 42))
}
