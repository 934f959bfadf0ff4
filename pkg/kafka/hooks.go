package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. Returning a non-nil error from
// BeforeHandle skips the handler and treats the message as failed.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
	OnError(ctx context.Context, km kafka.Message, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

func (NoopHook) OnError(context.Context, kafka.Message, error) {}

// HookFuncs implements ConsumerHook from plain functions. Nil functions are
// no-ops.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, error)
	After  func(context.Context, kafka.Message, error)
	Err    func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, km kafka.Message, err error) {
	if h.Err != nil {
		h.Err(ctx, km, err)
	}
}

type headerKey string

// HeaderValue returns the value of header key on km, or "".
func HeaderValue(km kafka.Message, key string) string {
	for _, h := range km.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// WithTraceID stores a trace id in ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, headerKey("trace_id"), id)
}

// TraceID returns the trace id stored by WithTraceID.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(headerKey("trace_id")).(string)
	return v
}

// TraceHook copies the trace_id header of each message into its context.
func TraceHook() ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, km kafka.Message) (context.Context, error) {
			if id := HeaderValue(km, "trace_id"); id != "" {
				ctx = WithTraceID(ctx, id)
			}
			return ctx, nil
		},
	}
}

// Chain runs hooks in order. BeforeHandle stops at the first error.
func Chain(hooks ...ConsumerHook) ConsumerHook {
	return chain(hooks)
}

type chain []ConsumerHook

func (c chain) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	for _, h := range c {
		var err error
		if ctx, err = h.BeforeHandle(ctx, km); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (c chain) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	for _, h := range c {
		h.AfterHandle(ctx, km, err)
	}
}

func (c chain) OnError(ctx context.Context, km kafka.Message, err error) {
	for _, h := range c {
		h.OnError(ctx, km, err)
	}
}
