// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/petenewcomb/pcq-go/internal/state"
	"github.com/petenewcomb/pcq-go/internal/waitq"
)

// A Channel is a fixed-capacity FIFO queue used as the handoff point between
// producers and consumers. [Channel.Put] blocks while the channel is full and
// [Channel.Get] blocks while it is empty, so a slow set of consumers stalls
// producers rather than letting the queue grow.
//
// Separately from its buffer, a Channel counts values that have been put but
// not yet acknowledged with [Channel.MarkDone]. Removal happens at Get, but
// completion is signaled separately so that processing may continue after
// dequeue. [Channel.Drained] reports when that count is zero.
//
// Blocked callers are parked in arrival order and are released by
// [Channel.Close], by the cancellation of their context, or by the condition
// they are waiting for.
//
// All methods are thread-safe. A Channel must be created with [NewChannel].
type Channel[T any] struct {
	capacity int

	mu     sync.Mutex
	buf    deque.Deque[T]
	closed bool

	closedCh chan struct{}
	notFull  waitq.Queue
	notEmpty waitq.Queue
	inFlight state.Barrier
}

// NewChannel creates an empty channel that holds at most capacity values.
// Returns an error wrapping [ErrCapacityMisconfigured] if capacity is less
// than one.
func NewChannel[T any](capacity int) (*Channel[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacityMisconfigured, capacity)
	}
	return &Channel[T]{
		capacity: capacity,
		closedCh: make(chan struct{}),
	}, nil
}

// Put appends v to the tail of the channel, blocking while the channel is
// full. Returns [ErrChannelClosed] if the channel is closed before v could be
// added, or ctx.Err() if ctx ends first. Other goroutines are never blocked by
// a waiting Put.
func (c *Channel[T]) Put(ctx context.Context, v T) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrChannelClosed
		}
		if c.buf.Len() < c.capacity {
			c.buf.PushBack(v)
			c.inFlight.Add()
			c.mu.Unlock()
			c.notEmpty.Notify()
			return nil
		}
		// Register before releasing the lock so that a Get between Unlock
		// and select cannot slip its notification past us.
		w := c.notFull.Add()
		c.mu.Unlock()

		select {
		case <-w.Done():
			// Room may be available; loop to re-check.
		case <-c.closedCh:
			w.Close()
			return ErrChannelClosed
		case <-ctx.Done():
			w.Close()
			return ctx.Err()
		}
	}
}

// Get removes and returns the value at the head of the channel, blocking
// while the channel is empty. Values buffered before [Channel.Close] are still
// returned; once a closed channel is empty, Get returns [ErrChannelClosed].
// Returns ctx.Err() if ctx ends first.
//
// Every successful Get should be followed by exactly one call to
// [Channel.MarkDone] once the value has been fully processed.
func (c *Channel[T]) Get(ctx context.Context) (T, error) {
	return c.get(ctx, nil)
}

// get behaves like Get, but also gives up with errStopped if stop is closed
// while the channel is empty. A value that is available is always preferred
// over stopping.
func (c *Channel[T]) get(ctx context.Context, stop <-chan struct{}) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		c.mu.Lock()
		if c.buf.Len() > 0 {
			v := c.buf.PopFront()
			c.mu.Unlock()
			c.notFull.Notify()
			return v, nil
		}
		if c.closed {
			c.mu.Unlock()
			return zero, ErrChannelClosed
		}
		select {
		case <-stop:
			c.mu.Unlock()
			return zero, errStopped
		default:
		}
		w := c.notEmpty.Add()
		c.mu.Unlock()

		select {
		case <-w.Done():
		case <-c.closedCh:
			// Loop to hand out anything still buffered before reporting
			// closure.
			w.Close()
		case <-stop:
			w.Close()
		case <-ctx.Done():
			w.Close()
			return zero, ctx.Err()
		}
	}
}

// MarkDone records that a value previously returned by Get has been fully
// processed. Panics if called more times than values have been put.
func (c *Channel[T]) MarkDone() {
	c.inFlight.Done()
}

// Close prevents further puts and wakes every blocked caller so that it
// observes closure instead of waiting forever. Values already buffered remain
// available to Get. Calling Close more than once has no additional effect.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.closedCh)
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len returns the number of buffered values.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// Cap returns the channel's fixed capacity.
func (c *Channel[T]) Cap() int {
	return c.capacity
}

// InFlight returns the number of values that have been put but not yet
// marked done.
func (c *Channel[T]) InFlight() int {
	return int(c.inFlight.Count())
}

// PeakInFlight returns the highest in-flight count observed.
func (c *Channel[T]) PeakInFlight() int {
	return int(c.inFlight.Peak())
}

// Drained returns a channel that is closed while nothing is in flight. A
// channel obtained while values are in flight is closed once all of them have
// been marked done.
func (c *Channel[T]) Drained() <-chan struct{} {
	return c.inFlight.Zero()
}

// WaitDrained blocks until nothing is in flight or ctx ends.
func (c *Channel[T]) WaitDrained(ctx context.Context) error {
	return c.inFlight.Wait(ctx)
}
