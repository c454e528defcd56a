package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
)

type mockStream struct {
	mu         sync.Mutex
	connected  bool
	reconnects int
	envCh      chan *models.SignalEnvelope
	errCh      chan error
}

func newMockStream() *mockStream {
	return &mockStream{
		envCh: make(chan *models.SignalEnvelope, 16),
		errCh: make(chan error, 16),
	}
}

func (s *mockStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *mockStream) Subscribe(context.Context) error { return nil }

func (s *mockStream) Read(context.Context) (<-chan *models.SignalEnvelope, <-chan error) {
	return s.envCh, s.errCh
}

func (s *mockStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *mockStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *mockStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestCollectorConsumesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := newMockStream()
	store := &mockStore{}
	ingest, _ := newIngest(t, store, newMockMetrics())
	c := NewSignalCollector(stream, ingest, newMockMetrics(), nil)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsConnected())

	stream.envCh <- envOf("AAPL", openPayload(), pay("news", 0.8, 0.9))

	assert.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorReconnectsOnStreamError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := newMockStream()
	m := newMockMetrics()
	ingest, _ := newIngest(t, &mockStore{}, m)
	c := NewSignalCollector(stream, ingest, m, nil)

	require.NoError(t, c.Start(ctx))
	stream.errCh <- errBackendDown

	assert.Eventually(t, func() bool { return stream.reconnectCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.errCount("stream"))
}

func TestCollectorStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := newMockStream()
	ingest, _ := newIngest(t, &mockStore{}, newMockMetrics())
	c := NewSignalCollector(stream, ingest, newMockMetrics(), nil)

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop())
	assert.False(t, c.IsConnected())
}

func TestCollectorExposesProcessor(t *testing.T) {
	ingest, _ := newIngest(t, &mockStore{}, newMockMetrics())
	c := NewSignalCollector(newMockStream(), ingest, newMockMetrics(), nil)
	assert.NotNil(t, c.Processor())
}
