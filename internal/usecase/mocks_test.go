package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
)

// Hand-rolled mocks shared across the usecase tests.

type mockMetrics struct {
	mu         sync.Mutex
	errors     map[string]int
	emitted    []string
	composites map[string]float64
	latencies  map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		errors:     map[string]int{},
		composites: map[string]float64{},
		latencies:  map[string]int{},
	}
}

func (m *mockMetrics) RecordIntentEmitted(backend, ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append(m.emitted, backend+":"+ticker)
}

func (m *mockMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *mockMetrics) RecordComposite(ticker string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.composites[ticker] = score
}

func (m *mockMetrics) RecordLatency(op string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[op]++
}

func (m *mockMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *mockMetrics) emittedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emitted)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []*models.TradingIntent
	failErr   error
	closed    bool
}

func (p *mockPublisher) Publish(_ context.Context, in *models.TradingIntent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.published = append(p.published, in)
	return nil
}

func (p *mockPublisher) PublishBatch(ctx context.Context, ins []*models.TradingIntent) error {
	for _, in := range ins {
		if err := p.Publish(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (p *mockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type mockStore struct {
	mu      sync.Mutex
	stored  []*models.TradingIntent
	rows    []*models.StoredIntent
	failErr error
	closed  bool
}

func (s *mockStore) Init(context.Context) error { return nil }

func (s *mockStore) Store(_ context.Context, in *models.TradingIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.stored = append(s.stored, in)
	return nil
}

func (s *mockStore) StoreBatch(ctx context.Context, ins []*models.TradingIntent) error {
	for _, in := range ins {
		if err := s.Store(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (s *mockStore) Query(_ context.Context, ticker string, _, _ time.Time, limit int) ([]*models.StoredIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := make([]*models.StoredIntent, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Ticker == ticker && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *mockStore) Health(context.Context) error { return nil }

func (s *mockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type queuedMsg struct {
	msgType string
	payload interface{}
}

type mockQueue struct {
	mu      sync.Mutex
	msgs    []queuedMsg
	failErr error
}

func (q *mockQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failErr != nil {
		return q.failErr
	}
	q.msgs = append(q.msgs, queuedMsg{msgType: msgType, payload: payload})
	return nil
}

func (q *mockQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

type mockProvider struct {
	mu    sync.Mutex
	gctx  models.GateContext
	err   error
	calls int
}

func (p *mockProvider) Snapshot(context.Context, string) (models.GateContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return models.GateContext{}, p.err
	}
	return p.gctx, nil
}

func (p *mockProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var errBackendDown = fmt.Errorf("backend down")
