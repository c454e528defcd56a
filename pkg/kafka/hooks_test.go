package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainThreadsDataThroughHooks(t *testing.T) {
	chain := NewHookChain(
		HookFuncs{Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, append(data, '1'), nil
		}},
		nil, // nil hooks are skipped
		HookFuncs{Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, append(data, '2'), nil
		}},
	)

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x12", string(data))
}

func TestHookChainBeforeErrorNotifiesEveryHook(t *testing.T) {
	var notified []string
	observer := func(name string) HookFuncs {
		return HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) {
			notified = append(notified, name)
		}}
	}

	failing := HookFuncs{Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
		return ctx, km, data, &HookError{Code: "ERR_VALIDATION"}
	}}
	chain := NewHookChain(observer("a"), failing, observer("b"))

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.Error(t, err)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "ERR_VALIDATION", hookErr.Code)
	assert.Equal(t, []string{"a", "b"}, notified)
}

func TestHookChainRecoversPanickingHook(t *testing.T) {
	chain := NewHookChain(HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.Error(t, err)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "ERR_PANIC", hookErr.Code)
	assert.Contains(t, hookErr.Error(), "boom")
}

func TestHookChainAfterRunsInReverseOrder(t *testing.T) {
	var order []string
	after := func(name string) HookFuncs {
		return HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) {
			order = append(order, name)
		}}
	}

	chain := NewHookChain(after("first"), after("second"))
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestTraceHookStampsContext(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("req-42")}}}

	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "t", msg, nil)
	require.NoError(t, err)

	start, ok := ctx.Value(CtxStartTime).(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), start, time.Second)
	assert.Equal(t, "req-42", ctx.Value(CtxTraceID))
}

func TestExtractTraceID(t *testing.T) {
	assert.Empty(t, ExtractTraceID(kafka.Message{}))
	assert.Empty(t, ExtractTraceID(kafka.Message{Headers: []kafka.Header{{Key: "other", Value: []byte("x")}}}))
	assert.Equal(t, "abc",
		ExtractTraceID(kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}))
}

func TestHookErrorFormatting(t *testing.T) {
	bare := &HookError{Code: "ERR_TRANSFORM"}
	assert.Equal(t, "ERR_TRANSFORM", bare.Error())

	cause := fmt.Errorf("bad payload")
	wrapped := &HookError{Code: "ERR_VALIDATION", Err: cause}
	assert.Equal(t, "ERR_VALIDATION: bad payload", wrapped.Error())
	assert.True(t, errors.Is(wrapped, cause))
}
