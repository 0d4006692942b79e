// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpcq

import (
	"context"
	"time"

	"github.com/petenewcomb/pcq-go"
	"go.uber.org/zap"
)

// LoggedProduce adds structured logging to a produce function, including
// timing information and any error that occurs.
func LoggedProduce[T any](
	operationName string,
	produceFunc pcq.ProduceFunc[T],
) pcq.ProduceFunc[T] {
	return func(ctx context.Context, producer, seq int) (T, error) {
		logger := zap.L()

		logger.Debug("Starting produce",
			zap.String("operation", operationName),
			zap.String("component", "otpcq"),
			zap.Int("producer", producer),
			zap.Int("seq", seq))

		startTime := time.Now()
		value, err := produceFunc(ctx, producer, seq)
		duration := time.Since(startTime)

		if err != nil {
			logger.Error("Produce failed",
				zap.String("operation", operationName),
				zap.String("component", "otpcq"),
				zap.Int("producer", producer),
				zap.Int("seq", seq),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			logger.Debug("Produce completed",
				zap.String("operation", operationName),
				zap.String("component", "otpcq"),
				zap.Int("producer", producer),
				zap.Int("seq", seq),
				zap.Duration("duration", duration))
		}

		return value, err
	}
}

// LoggedConsume adds structured logging to a consume function, including
// how long the item waited in the channel and how long processing took.
func LoggedConsume[T any](
	operationName string,
	consumeFunc pcq.ConsumeFunc[T],
) pcq.ConsumeFunc[T] {
	return func(ctx context.Context, item pcq.Item[T]) error {
		logger := zap.L()

		logger.Debug("Starting consume",
			zap.String("operation", operationName),
			zap.String("component", "otpcq"),
			zap.Int("producer", item.Producer),
			zap.Int("seq", item.Seq),
			zap.Duration("latency", time.Since(item.Created)))

		startTime := time.Now()
		err := consumeFunc(ctx, item)
		duration := time.Since(startTime)

		if err != nil {
			logger.Error("Consume failed",
				zap.String("operation", operationName),
				zap.String("component", "otpcq"),
				zap.Int("producer", item.Producer),
				zap.Int("seq", item.Seq),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			logger.Debug("Consume completed",
				zap.String("operation", operationName),
				zap.String("component", "otpcq"),
				zap.Int("producer", item.Producer),
				zap.Int("seq", item.Seq),
				zap.Duration("duration", duration))
		}

		return err
	}
}
