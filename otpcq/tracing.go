// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpcq

import (
	"context"
	"time"

	"github.com/petenewcomb/pcq-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracedProduce adds a span with the given operation name around each call
// to a produce function. The span's context travels with the produced value.
func TracedProduce[T any](
	operationName string,
	produceFunc pcq.ProduceFunc[T],
) pcq.ProduceFunc[PropagatedValue[T]] {
	propagatedProduce := PropagateProduce(produceFunc)

	return func(ctx context.Context, producer, seq int) (PropagatedValue[T], error) {
		tracer := otel.Tracer("otpcq")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()
		span.SetAttributes(
			attribute.Int("pcq.producer", producer),
			attribute.Int("pcq.seq", seq))

		result, err := propagatedProduce(ctx, producer, seq)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		// Ensure the value carries our span context
		result.TraceContext = span.SpanContext()
		return result, err
	}
}

// TracedConsume adds a span with the given operation name around each call
// to a consume function. The span is parented by the span that produced the
// item, if any, and records how long the item waited before being consumed.
func TracedConsume[T any](
	operationName string,
	consumeFunc pcq.ConsumeFunc[T],
) pcq.ConsumeFunc[PropagatedValue[T]] {
	tracedConsumeFunc := func(ctx context.Context, item pcq.Item[T]) error {
		tracer := otel.Tracer("otpcq")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()
		span.SetAttributes(
			attribute.Int("pcq.producer", item.Producer),
			attribute.Int("pcq.seq", item.Seq),
			attribute.Int64("pcq.latency_us", time.Since(item.Created).Microseconds()))

		err := consumeFunc(ctx, item)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}

	return PropagateConsume(tracedConsumeFunc)
}
