package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"StockPredictor/pkg/logger"
)

// TraceHeader carries a request's trace id across topics.
const TraceHeader = "trace_id"

// Delivery is one attempt at handling a fetched message. Hooks may replace
// Ctx and Value; the handler sees whatever the last Before left there.
type Delivery struct {
	Ctx     context.Context
	Topic   string
	Msg     kafka.Message
	Value   []byte
	Attempt int
	Started time.Time
}

// Hook observes deliveries. An error from Before skips the handler and
// counts as a failed attempt; After always runs with the attempt's result.
type Hook interface {
	Before(d *Delivery) error
	After(d *Delivery, err error)
}

// ErrHookPanic wraps a value recovered from a panicking hook.
type ErrHookPanic struct {
	Hook  int
	Value any
}

func (e *ErrHookPanic) Error() string {
	return fmt.Sprintf("kafka hook %d panicked: %v", e.Hook, e.Value)
}

// HookFunc builds a Hook from optional functions.
type HookFunc struct {
	OnBefore func(*Delivery) error
	OnAfter  func(*Delivery, error)
}

func (h HookFunc) Before(d *Delivery) error {
	if h.OnBefore == nil {
		return nil
	}
	return h.OnBefore(d)
}

func (h HookFunc) After(d *Delivery, err error) {
	if h.OnAfter != nil {
		h.OnAfter(d, err)
	}
}

// Hooks runs Before front to back and After back to front, so the first
// hook wraps every other one. Only hooks whose Before ran get an After.
type Hooks []Hook

// Chain drops nil entries.
func Chain(hs ...Hook) Hooks {
	out := make(Hooks, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// run wraps fn in the chain and returns fn's error or the first failure
// from a Before.
func (hs Hooks) run(d *Delivery, fn func(*Delivery) error) error {
	entered := 0
	var err error
	for i, h := range hs {
		if err = guard(i, func() error { return h.Before(d) }); err != nil {
			break
		}
		entered++
	}
	if err == nil {
		err = fn(d)
	}
	for i := entered - 1; i >= 0; i-- {
		h := hs[i]
		_ = guard(i, func() error { h.After(d, err); return nil })
	}
	return err
}

func guard(i int, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ErrHookPanic{Hook: i, Value: r}
		}
	}()
	return fn()
}

type ctxKey struct{}

// WithTraceID stores id on ctx; Producer copies it into TraceHeader.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// ExtractTraceID reads TraceHeader from msg, or "".
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == TraceHeader {
			return string(h.Value)
		}
	}
	return ""
}

// TraceHook moves the message's trace id onto the delivery context and
// logs the outcome of every attempt.
func TraceHook(log *logger.Logger) Hook {
	return HookFunc{
		OnBefore: func(d *Delivery) error {
			d.Ctx = WithTraceID(d.Ctx, ExtractTraceID(d.Msg))
			return nil
		},
		OnAfter: func(d *Delivery, err error) {
			fields := []logger.Field{
				logger.String("topic", d.Topic),
				logger.Int("partition", d.Msg.Partition),
				logger.Int64("offset", d.Msg.Offset),
				logger.Int("attempt", d.Attempt),
				logger.String("trace_id", TraceIDFromContext(d.Ctx)),
				logger.Duration("elapsed_ms", time.Since(d.Started)),
			}
			if err != nil {
				log.Warn("kafka delivery failed", append(fields, logger.Error(err))...)
				return
			}
			log.Debug("kafka delivery handled", fields...)
		},
	}
}
