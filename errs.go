// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"fmt"
)

type constError string

func (e constError) Error() string {
	return string(e)
}

// ErrChannelClosed is returned by [Channel.Put] once the channel has been
// closed, and by [Channel.Get] once it has been closed and emptied.
const ErrChannelClosed = constError("channel closed")

// ErrWorkerPanic is matched by the [PanicError] recorded for a worker whose
// unit of work panicked.
const ErrWorkerPanic = constError("worker panicked")

// ErrCapacityMisconfigured is returned when a channel is requested with a
// capacity less than one.
const ErrCapacityMisconfigured = constError("capacity must be at least one")

// ErrWorkersMisconfigured is returned when a run is requested with a negative
// number of producers or fewer than one consumer.
const ErrWorkersMisconfigured = constError("invalid worker counts")

// ErrConsumersExited is recorded when every consumer has terminated while
// items could still be produced or remained in flight.
const ErrConsumersExited = constError("all consumers exited before drain")

const errStopped = constError("worker stopped")

// WorkerError identifies the worker that recorded an error.
type WorkerError struct {
	Worker WorkerID
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%v: %v", e.Worker, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic recovered at a worker boundary.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrWorkerPanic, e.Value)
}

func (e *PanicError) Is(target error) bool {
	return target == ErrWorkerPanic
}
