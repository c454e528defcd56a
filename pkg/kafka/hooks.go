package kafka

import (
    "context"
    "fmt"
    "time"

    "github.com/segmentio/kafka-go"
)

// ConsumerHook observes and optionally rewrites a message on its way through
// the consumer. A BeforeHandle error skips the handler and sends the message
// down the error path (OnError, DLQ, offset commit).
type ConsumerHook interface {
    BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
    AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
    OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook passes everything through untouched.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
    return ctx, km, data, nil
}

func (NoopHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {}

func (NoopHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {}

// HookError classifies an error raised by a hook, e.g. "ERR_VALIDATION".
type HookError struct {
    Code string
    Err  error
}

func (e *HookError) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("%s: %v", e.Code, e.Err)
    }
    return e.Code
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions into a ConsumerHook. Nil functions are
// no-ops.
type HookFuncs struct {
    Before func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error)
    After  func(context.Context, string, kafka.Message, []byte, error)
    Err    func(context.Context, string, kafka.Message, []byte, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
    if h.Before == nil {
        return ctx, km, data, nil
    }
    return h.Before(ctx, topic, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    if h.After != nil {
        h.After(ctx, topic, km, data, err)
    }
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    if h.Err != nil {
        h.Err(ctx, topic, km, data, err)
    }
}

// HookChain composes hooks into one. BeforeHandle threads context, message,
// and payload through the hooks in order; AfterHandle unwinds in reverse
// order. Every hook call is recovered so a broken hook cannot take the
// consumer down with it.
type HookChain struct {
    hooks []ConsumerHook
}

// NewHookChain composes the given hooks, skipping nil entries.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
    kept := make([]ConsumerHook, 0, len(hooks))
    for _, h := range hooks {
        if h != nil {
            kept = append(kept, h)
        }
    }
    return &HookChain{hooks: kept}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
    for _, h := range c.hooks {
        var (
            nextCtx  = ctx
            nextMsg  = km
            nextData = data
            err      error
        )
        guard(func() {
            nextCtx, nextMsg, nextData, err = h.BeforeHandle(ctx, topic, km, data)
        }, func(r interface{}) {
            err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
        })
        if err != nil {
            for _, eh := range c.hooks {
                c.notify(eh, ctx, topic, km, data, err)
            }
            return ctx, km, data, err
        }
        ctx, km, data = nextCtx, nextMsg, nextData
    }
    return ctx, km, data, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    for i := len(c.hooks) - 1; i >= 0; i-- {
        h := c.hooks[i]
        guard(func() { h.AfterHandle(ctx, topic, km, data, err) }, nil)
    }
}

func (c *HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    for _, h := range c.hooks {
        c.notify(h, ctx, topic, km, data, err)
    }
}

func (c *HookChain) notify(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
    guard(func() { h.OnError(ctx, topic, km, data, err) }, nil)
}

// guard runs fn and recovers any panic; onPanic, when set, receives the
// recovered value.
func guard(fn func(), onPanic func(interface{})) {
    defer func() {
        if r := recover(); r != nil && onPanic != nil {
            onPanic(r)
        }
    }()
    fn()
}

// Context keys hooks use to pass metadata to handlers.
type ctxKey string

const (
    // CtxStartTime carries the time.Time at which handling began.
    CtxStartTime ctxKey = "kafka_hook_start_time"
    // CtxTraceID carries the trace id pulled from message headers.
    CtxTraceID ctxKey = "kafka_hook_trace_id"
)

// WithStartTime stamps the handling start time into the context.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
    return context.WithValue(ctx, CtxStartTime, t)
}

// WithTraceID stamps a non-empty trace id into the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
    if traceID == "" {
        return ctx
    }
    return context.WithValue(ctx, CtxTraceID, traceID)
}

// ExtractTraceID returns the trace_id header value, or "" when absent.
func ExtractTraceID(msg kafka.Message) string {
    for _, h := range msg.Headers {
        if h.Key != "trace_id" {
            continue
        }
        if len(h.Value) > 0 {
            return string(h.Value)
        }
    }
    return ""
}

// TraceHook stamps handling start time and any trace id from the message
// headers into the context before the handler runs.
func TraceHook() ConsumerHook {
    return HookFuncs{
        Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
            ctx = WithStartTime(ctx, time.Now())
            ctx = WithTraceID(ctx, ExtractTraceID(km))
            return ctx, km, data, nil
        },
    }
}
