package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIntentJobIdentity(t *testing.T) {
	j := NewRecordIntentJob(newProcessor("kafka", &mockPublisher{}, &mockStore{}, nil, newMockMetrics()), nil)
	assert.Equal(t, "record-intent", j.Name())
	assert.Equal(t, MsgTypeRecordIntent, j.Type())
}

func TestRecordIntentJobReplaysFromJSON(t *testing.T) {
	store := &mockStore{}
	proc := newProcessor("clickhouse", &mockPublisher{}, store, nil, newMockMetrics())
	j := NewRecordIntentJob(proc, nil)

	// the queue hands payloads back as decoded JSON maps
	b, err := json.Marshal(RecordIntentPayload{Intent: *testIntent("AAPL")})
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))

	require.NoError(t, j.Handle(context.Background(), raw))
	require.Equal(t, 1, store.count())
	assert.Equal(t, "AAPL", store.stored[0].Ticker)
}

func TestRecordIntentJobSurfacesWriteFailure(t *testing.T) {
	store := &mockStore{failErr: errBackendDown}
	q := &mockQueue{}
	proc := newProcessor("clickhouse", &mockPublisher{}, store, q, newMockMetrics())
	j := NewRecordIntentJob(proc, nil)

	err := j.Handle(context.Background(), RecordIntentPayload{Intent: *testIntent("AAPL")})
	require.Error(t, err, "the queue decides on retry, the job just reports")
	assert.Equal(t, 0, q.count(), "a failed replay is not re-enqueued by the job")
}

func TestRecordIntentJobRejectsBadPayload(t *testing.T) {
	proc := newProcessor("clickhouse", &mockPublisher{}, &mockStore{}, nil, newMockMetrics())
	j := NewRecordIntentJob(proc, nil)
	assert.Error(t, j.Handle(context.Background(), 42))
}
