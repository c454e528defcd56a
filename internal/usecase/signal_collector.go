package usecase

import (
	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	mid "FinFuse/internal/middleware"
	"context"
)

// SignalCollector reads envelopes from the signal stream and drives them
// through the intake pipeline into the fuse path.
type SignalCollector struct {
	stream  drepo.SignalStream
	ingest  *SignalIngest
	metrics drepo.Metrics
	pipe    *mid.IntakePipeline
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(stream drepo.SignalStream, ingest *SignalIngest, metrics drepo.Metrics, pipe *mid.IntakePipeline) *SignalCollector {
	return &SignalCollector{stream: stream, ingest: ingest, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the signal stream is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	envCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, envCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, envCh <-chan *models.SignalEnvelope, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case env := <-envCh:
			if env == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, env)
			} else {
				_ = c.ingest.Process(ctx, env)
			}
		}
	}
}

func (c *SignalCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying IntentProcessor for lifecycle management.
func (c *SignalCollector) Processor() *IntentProcessor {
	if c.ingest == nil {
		return nil
	}
	return c.ingest.proc
}

// Shutdown stops the pipeline and closes the stream.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
