// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otpcq provides OpenTelemetry and zap integration for the pcq
// producer/consumer core. Its wrappers add logging, metrics and tracing to
// produce and consume functions, and carry trace context across the channel
// so that the span of a consumer is parented by the span of the producer that
// made its item.
package otpcq

import (
	"context"

	"github.com/petenewcomb/pcq-go"
	"go.opentelemetry.io/otel/trace"
)

// PropagatedValue wraps a produced value with the trace context that was
// active when it was made, so that it can be restored on the consumer side.
type PropagatedValue[T any] struct {
	// Value is the value returned by the wrapped produce function.
	Value T
	// TraceContext is the trace context to propagate.
	TraceContext trace.SpanContext
}

// PropagateProduce wraps a produce function so that each value carries the
// trace context of the producing goroutine's context.
func PropagateProduce[T any](
	produceFunc pcq.ProduceFunc[T],
) pcq.ProduceFunc[PropagatedValue[T]] {
	return func(ctx context.Context, producer, seq int) (PropagatedValue[T], error) {
		value, err := produceFunc(ctx, producer, seq)
		return PropagatedValue[T]{
			Value:        value,
			TraceContext: trace.SpanFromContext(ctx).SpanContext(),
		}, err
	}
}

// PropagateConsume wraps a consume function so that it runs with the trace
// context carried by the item, allowing spans it creates to be parented
// properly.
func PropagateConsume[T any](
	consumeFunc pcq.ConsumeFunc[T],
) pcq.ConsumeFunc[PropagatedValue[T]] {
	return func(ctx context.Context, item pcq.Item[PropagatedValue[T]]) error {
		if item.Value.TraceContext.IsValid() {
			ctx = trace.ContextWithRemoteSpanContext(ctx, item.Value.TraceContext)
		}
		return consumeFunc(ctx, unwrap(item))
	}
}

func unwrap[T any](item pcq.Item[PropagatedValue[T]]) pcq.Item[T] {
	return pcq.Item[T]{
		Value:    item.Value.Value,
		Created:  item.Created,
		Producer: item.Producer,
		Seq:      item.Seq,
	}
}
