// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"context"
	"time"
)

// An Item is a single unit of work passed from a producer to a consumer. Items
// are immutable once produced; ownership moves from the channel slot to the
// one consumer that dequeues it.
type Item[T any] struct {
	Value T

	// Created is when the producer finished making the value, just before it
	// was offered to the channel.
	Created time.Time

	// Producer is the index of the producing worker, and Seq the item's
	// position within that producer's output starting at zero.
	Producer int
	Seq      int
}

// A ProduceFunc makes the value for the seq'th item of the producer with the
// given index. Returning an error stops that producer and records the error;
// the items it already produced are still consumed.
//
// Each producer runs in its own goroutine, so a ProduceFunc shared between
// producers must be thread-safe.
type ProduceFunc[T any] = func(ctx context.Context, producer, seq int) (T, error)

// A ConsumeFunc processes one dequeued item. Returning an error, or
// panicking, stops the consumer that called it and records the failure; the
// item still counts as completed for drain purposes.
//
// ConsumeFuncs are called concurrently from every consumer goroutine and must
// be thread-safe.
type ConsumeFunc[T any] = func(ctx context.Context, item Item[T]) error

// A DelayFunc returns how long to wait before the next unit of simulated
// work. It is called concurrently from every worker and must be thread-safe.
type DelayFunc = func() time.Duration

// A CountFunc returns how many items the producer with the given index makes.
type CountFunc = func(producer int) int
