// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpcq

import (
	"context"
	"time"

	"github.com/petenewcomb/pcq-go"
	"go.opentelemetry.io/otel"
)

// MetricsProduce adds metrics collection to a produce function, recording
// count, duration, and error metrics under the given name prefix.
func MetricsProduce[T any](
	metricName string,
	produceFunc pcq.ProduceFunc[T],
) pcq.ProduceFunc[T] {
	meter := otel.GetMeterProvider().Meter("otpcq")
	produceCounter, _ := meter.Int64Counter(metricName + ".count")
	produceDuration, _ := meter.Float64Histogram(metricName + ".duration")
	errorCounter, _ := meter.Int64Counter(metricName + ".errors")

	return func(ctx context.Context, producer, seq int) (T, error) {
		startTime := time.Now()
		produceCounter.Add(ctx, 1)

		value, err := produceFunc(ctx, producer, seq)

		produceDuration.Record(ctx, time.Since(startTime).Seconds())
		if err != nil {
			errorCounter.Add(ctx, 1)
		}
		return value, err
	}
}

// MetricsConsume adds metrics collection to a consume function. In addition
// to count, duration, and error metrics it records each item's latency, the
// time from production to the start of processing.
func MetricsConsume[T any](
	metricName string,
	consumeFunc pcq.ConsumeFunc[T],
) pcq.ConsumeFunc[T] {
	meter := otel.GetMeterProvider().Meter("otpcq")
	consumeCounter, _ := meter.Int64Counter(metricName + ".count")
	consumeDuration, _ := meter.Float64Histogram(metricName + ".duration")
	consumeLatency, _ := meter.Float64Histogram(metricName + ".latency")
	errorCounter, _ := meter.Int64Counter(metricName + ".errors")

	return func(ctx context.Context, item pcq.Item[T]) error {
		startTime := time.Now()
		consumeCounter.Add(ctx, 1)
		consumeLatency.Record(ctx, startTime.Sub(item.Created).Seconds())

		err := consumeFunc(ctx, item)

		consumeDuration.Record(ctx, time.Since(startTime).Seconds())
		if err != nil {
			errorCounter.Add(ctx, 1)
		}
		return err
	}
}
