package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
)

// Retry pacing for the background drain while the fuse path keeps failing.
const (
	flushBackoffMin = 50 * time.Millisecond
	flushBackoffMax = 2 * time.Second
)

// Proc is the downstream consumer the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, env *models.SignalEnvelope) error
}

// IntakePipeline sits between the signal feed and the fuse path. Envelopes
// are validated, throttled per ticker, optionally normalized, and parked in
// a bounded buffer whenever downstream rejects them.
type IntakePipeline struct {
	proc    Proc
	metrics domrepo.Metrics

	maxRPS  float64
	bufSize int
	bufCh   chan *models.SignalEnvelope

	// normalization hook, applied before the throttle check
	transform func(*models.SignalEnvelope) *models.SignalEnvelope

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	lastSeen map[string]time.Time // last accepted envelope per ticker, feed goroutine only
}

type PipelineOption func(*IntakePipeline)

// WithMaxRPS caps accepted envelopes per second for each ticker.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *IntakePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize bounds the park buffer used while downstream is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *IntakePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform installs a normalization hook run on every envelope.
func WithTransform(fn func(*models.SignalEnvelope) *models.SignalEnvelope) PipelineOption {
	return func(p *IntakePipeline) { p.transform = fn }
}

// NewIntakePipeline builds a pipeline with a 20 rps per-ticker throttle and a
// 1000-envelope buffer unless options say otherwise.
func NewIntakePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IntakePipeline {
	p := &IntakePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.SignalEnvelope, p.bufSize)
	return p
}

// Start launches the background drain of parked envelopes. Calling it again
// before Stop is a no-op.
func (p *IntakePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.flushLoop(ctx)
}

// Stop halts the background drain. Parked envelopes stay in the buffer.
func (p *IntakePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Process runs one envelope through validation, normalization, and the
// per-ticker throttle, then hands it to the fuse path. When the fuse path
// fails the envelope is parked for the background drain and the error is
// returned to the caller.
func (p *IntakePipeline) Process(ctx context.Context, env *models.SignalEnvelope) error {
	start := time.Now()

	if env == nil {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("envelope nil")
	}
	if err := env.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		env = p.transform(env)
		if err := env.Validate(); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(env.Ticker, start) {
		// dropped, not an error: the caller keeps reading the feed
		p.noteThrottled(env.Ticker)
		return nil
	}

	if err := p.proc.Process(ctx, env); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.park(env)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// flushLoop retries parked envelopes until Stop, backing off while the fuse
// path keeps failing.
func (p *IntakePipeline) flushLoop(ctx context.Context) {
	backoff := flushBackoffMin
	for {
		select {
		case <-p.stopCh:
			return
		case env := <-p.bufCh:
			if env == nil {
				continue
			}
			if err := p.proc.Process(ctx, env); err != nil {
				p.metrics.RecordError("pipeline_flush")
				p.requeue(env)
				time.Sleep(backoff)
				if backoff < flushBackoffMax {
					backoff *= 2
				}
				continue
			}
			backoff = flushBackoffMin
		}
	}
}

// park buffers the envelope for the background drain without blocking.
func (p *IntakePipeline) park(env *models.SignalEnvelope) {
	select {
	case p.bufCh <- env:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// requeue puts a failed flush back in the buffer, dropping it when full.
func (p *IntakePipeline) requeue(env *models.SignalEnvelope) {
	select {
	case p.bufCh <- env:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
	}
}

// noteThrottled keeps both the aggregate counter and a per-ticker label so a
// single noisy feed shows up on its own.
func (p *IntakePipeline) noteThrottled(ticker string) {
	p.metrics.RecordError("pipeline_throttle")
	p.metrics.RecordError("pipeline_throttle_" + ticker)
}

func (p *IntakePipeline) allow(ticker string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	minGap := time.Duration(float64(time.Second) / p.maxRPS)
	last, ok := p.lastSeen[ticker]
	if ok && now.Sub(last) < minGap {
		return false
	}
	p.lastSeen[ticker] = now
	return true
}
