package kafka

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Keep consumer metrics off the default registry so repeated test runs
	// cannot collide with the rest of the process.
	SetConsumerMetricsRegisterer(prometheus.NewRegistry())
	os.Exit(m.Run())
}

type flakyHandler struct {
	topic    string
	failures int
	calls    int
	payloads []string
}

func (h *flakyHandler) Topic() string { return h.topic }

func (h *flakyHandler) Handle(_ context.Context, data []byte) error {
	h.calls++
	h.payloads = append(h.payloads, string(data))
	if h.calls <= h.failures {
		return fmt.Errorf("transient failure %d", h.calls)
	}
	return nil
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) *Consumer {
	t.Helper()
	base := []ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(3, time.Millisecond, 2*time.Millisecond),
	}
	c, err := NewConsumer(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	require.Error(t, err)
}

func TestProcessRetriesUntilHandlerSucceeds(t *testing.T) {
	c := newTestConsumer(t)
	h := &flakyHandler{topic: "signals", failures: 2}

	c.process(h, inbound{topic: "signals", msg: kafka.Message{Value: []byte("env")}})
	assert.Equal(t, 3, h.calls)
}

func TestProcessGivesUpAfterRetryMax(t *testing.T) {
	c := newTestConsumer(t, WithConsumerRetry(1, time.Millisecond, 2*time.Millisecond))
	h := &flakyHandler{topic: "signals", failures: 100}

	c.process(h, inbound{topic: "signals", msg: kafka.Message{Value: []byte("env")}})
	// initial attempt plus one retry
	assert.Equal(t, 2, h.calls)
}

func TestProcessHandlerSeesHookRewrittenPayload(t *testing.T) {
	c := newTestConsumer(t)
	c.WithConsumerHook(NewHookChain(HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, []byte("rewritten"), nil
		},
	}))

	h := &flakyHandler{topic: "signals"}
	c.process(h, inbound{topic: "signals", msg: kafka.Message{Value: []byte("original")}})

	require.Equal(t, 1, h.calls)
	assert.Equal(t, []string{"rewritten"}, h.payloads)
}

func TestProcessBeforeHookErrorSkipsHandler(t *testing.T) {
	var sawError bool
	c := newTestConsumer(t)
	c.WithConsumerHook(NewHookChain(HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, data, &HookError{Code: "ERR_VALIDATION"}
		},
		Err: func(context.Context, string, kafka.Message, []byte, error) {
			sawError = true
		},
	}))

	h := &flakyHandler{topic: "signals"}
	c.process(h, inbound{topic: "signals", msg: kafka.Message{Value: []byte("env")}})

	assert.Zero(t, h.calls)
	assert.True(t, sawError)
}

func TestProcessSurvivesPanickingHandler(t *testing.T) {
	c := newTestConsumer(t, WithConsumerRetry(0, time.Millisecond, 2*time.Millisecond))

	assert.NotPanics(t, func() {
		c.process(panicHandler{}, inbound{topic: "signals", msg: kafka.Message{Value: []byte("env")}})
	})
}

type panicHandler struct{}

func (panicHandler) Topic() string { return "signals" }

func (panicHandler) Handle(context.Context, []byte) error { panic("handler exploded") }

func TestSerialForReturnsOneMutexPerPartition(t *testing.T) {
	c := newTestConsumer(t)

	a := c.serialFor("signals", 0)
	b := c.serialFor("signals", 0)
	other := c.serialFor("signals", 1)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}

func TestRetryDelayStaysWithinBounds(t *testing.T) {
	min, max := 50*time.Millisecond, 500*time.Millisecond
	for attempt := 1; attempt <= 8; attempt++ {
		d := retryDelay(min, max, attempt)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, max, "attempt %d", attempt)
	}
}

func TestRetryDelayCoercesBadRange(t *testing.T) {
	d := retryDelay(0, -time.Second, 1)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 50*time.Millisecond)
}

func TestStartOffsetMapping(t *testing.T) {
	assert.Equal(t, kafka.LastOffset, startOffset("latest"))
	assert.Equal(t, kafka.FirstOffset, startOffset("earliest"))
	assert.Equal(t, kafka.FirstOffset, startOffset(""))
}
