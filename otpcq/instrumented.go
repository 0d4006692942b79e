// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpcq

import (
	"github.com/petenewcomb/pcq-go"
)

// InstrumentedProduce combines logging, metrics, and tracing for a produce
// function into a single wrapper.
func InstrumentedProduce[T any](
	operationName string,
	produceFunc pcq.ProduceFunc[T],
) pcq.ProduceFunc[PropagatedValue[T]] {
	// Apply wrappers inside-out: logging, then metrics, then tracing (which
	// includes propagation).
	loggedProduce := LoggedProduce(operationName, produceFunc)
	metricsProduce := MetricsProduce(operationName, loggedProduce)
	return TracedProduce(operationName, metricsProduce)
}

// InstrumentedConsume combines logging, metrics, and tracing for a consume
// function into a single wrapper.
func InstrumentedConsume[T any](
	operationName string,
	consumeFunc pcq.ConsumeFunc[T],
) pcq.ConsumeFunc[PropagatedValue[T]] {
	loggedConsume := LoggedConsume(operationName, consumeFunc)
	metricsConsume := MetricsConsume(operationName, loggedConsume)
	return TracedConsume(operationName, metricsConsume)
}
