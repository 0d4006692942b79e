// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"context"
	"sync"
)

// closedChan is returned by Barrier.Zero whenever nothing is in flight.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Barrier counts items that have been handed off but not yet completed and
// lets callers wait for that count to reach zero. The zero value is ready to
// use and starts at zero.
//
// Unlike [sync.WaitGroup], a Barrier may be waited on while other goroutines
// are still adding to it, and the wait channel re-arms each time the count
// leaves zero.
type Barrier struct {
	mu    sync.Mutex
	count int64
	peak  int64
	total int64
	zero  chan struct{} // open while count > 0
}

// Add increments the in-flight count.
func (b *Barrier) Add() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		b.zero = make(chan struct{})
	}
	b.count++
	b.total++
	if b.count > b.peak {
		b.peak = b.count
	}
}

// Done decrements the in-flight count and returns true if it reached zero.
// Panics if nothing was in flight.
func (b *Barrier) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		panic("underflow: nothing in flight")
	}
	b.count--
	if b.count == 0 {
		close(b.zero)
		b.zero = nil
		return true
	}
	return false
}

// Zero returns a channel that is closed while the count is zero. A channel
// obtained while items are in flight is closed when the last of them
// completes, even if more are added afterwards.
func (b *Barrier) Zero() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return closedChan
	}
	return b.zero
}

// Wait blocks until the count is zero or ctx ends.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.Zero():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of items currently in flight.
func (b *Barrier) Count() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Peak returns the highest count observed.
func (b *Barrier) Peak() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

// Total returns the number of calls to Add.
func (b *Barrier) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
