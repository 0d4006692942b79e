// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const blockedWait = 20 * time.Millisecond

func newTestChannel[T any](t require.TestingT, capacity int) *Channel[T] {
	c, err := NewChannel[T](capacity)
	require.NoError(t, err)
	return c
}

func TestChannelCapacityMisconfigured(t *testing.T) {
	chk := require.New(t)
	for _, capacity := range []int{0, -1, -100} {
		c, err := NewChannel[int](capacity)
		chk.Nil(c)
		chk.ErrorIs(err, ErrCapacityMisconfigured)
	}
}

func TestChannelBasicFunctionality(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 3)

	chk.Equal(3, c.Cap())
	chk.Equal(0, c.Len())
	chk.Equal(0, c.InFlight())

	chk.NoError(c.Put(ctx, 1))
	chk.NoError(c.Put(ctx, 2))
	chk.NoError(c.Put(ctx, 3))
	chk.Equal(3, c.Len())
	chk.Equal(3, c.InFlight())

	for _, expected := range []int{1, 2, 3} {
		v, err := c.Get(ctx)
		chk.NoError(err)
		chk.Equal(expected, v)
	}
	chk.Equal(0, c.Len())

	// Removal does not complete an item; MarkDone does.
	chk.Equal(3, c.InFlight())
	c.MarkDone()
	c.MarkDone()
	chk.Equal(1, c.InFlight())
	select {
	case <-c.Drained():
		chk.Fail("drained with an item still in flight")
	default:
	}
	c.MarkDone()
	chk.Equal(0, c.InFlight())
	chk.Equal(3, c.PeakInFlight())
	select {
	case <-c.Drained():
	default:
		chk.Fail("expected drained channel")
	}
}

func TestChannelMarkDoneUnderflowPanics(t *testing.T) {
	c := newTestChannel[int](t, 1)
	require.Panics(t, c.MarkDone)
}

func TestChannelPutBlocksWhileFull(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[string](t, 1)

	chk.NoError(c.Put(ctx, "a"))

	putDone := make(chan error, 1)
	go func() {
		putDone <- c.Put(ctx, "b")
	}()

	time.Sleep(blockedWait)
	select {
	case err := <-putDone:
		chk.Failf("put should have blocked", "returned %v", err)
	default:
	}

	v, err := c.Get(ctx)
	chk.NoError(err)
	chk.Equal("a", v)

	chk.NoError(<-putDone)
	v, err = c.Get(ctx)
	chk.NoError(err)
	chk.Equal("b", v)
}

func TestChannelGetBlocksWhileEmpty(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 2)

	type result struct {
		v   int
		err error
	}
	getDone := make(chan result, 1)
	go func() {
		v, err := c.Get(ctx)
		getDone <- result{v, err}
	}()

	time.Sleep(blockedWait)
	select {
	case r := <-getDone:
		chk.Failf("get should have blocked", "returned %v", r)
	default:
	}

	chk.NoError(c.Put(ctx, 42))
	r := <-getDone
	chk.NoError(r.err)
	chk.Equal(42, r.v)
}

func TestChannelCloseReleasesBlockedPut(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 1)
	chk.NoError(c.Put(ctx, 1))

	putDone := make(chan error, 1)
	go func() {
		putDone <- c.Put(ctx, 2)
	}()
	time.Sleep(blockedWait)

	c.Close()
	select {
	case err := <-putDone:
		chk.ErrorIs(err, ErrChannelClosed)
	case <-time.After(time.Second):
		chk.Fail("blocked put was not released by Close")
	}

	// Later puts fail immediately.
	chk.ErrorIs(c.Put(ctx, 3), ErrChannelClosed)
	chk.Equal(1, c.InFlight())
}

func TestChannelCloseReleasesBlockedGet(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 1)

	getDone := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		getDone <- err
	}()
	time.Sleep(blockedWait)

	c.Close()
	select {
	case err := <-getDone:
		chk.ErrorIs(err, ErrChannelClosed)
	case <-time.After(time.Second):
		chk.Fail("blocked get was not released by Close")
	}
}

func TestChannelCloseDrainsBufferedValues(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 3)
	chk.NoError(c.Put(ctx, 1))
	chk.NoError(c.Put(ctx, 2))

	c.Close()
	chk.True(c.Closed())

	v, err := c.Get(ctx)
	chk.NoError(err)
	chk.Equal(1, v)
	v, err = c.Get(ctx)
	chk.NoError(err)
	chk.Equal(2, v)
	_, err = c.Get(ctx)
	chk.ErrorIs(err, ErrChannelClosed)
}

func TestChannelCloseIdempotent(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 2)
	chk.NoError(c.Put(ctx, 7))

	c.Close()
	c.Close()

	chk.True(c.Closed())
	chk.Equal(1, c.Len())
	chk.ErrorIs(c.Put(ctx, 8), ErrChannelClosed)
	v, err := c.Get(ctx)
	chk.NoError(err)
	chk.Equal(7, v)
	_, err = c.Get(ctx)
	chk.ErrorIs(err, ErrChannelClosed)
}

func TestChannelContextCancellation(t *testing.T) {
	chk := require.New(t)
	c := newTestChannel[int](t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), blockedWait)
	defer cancel()
	_, err := c.Get(ctx)
	chk.ErrorIs(err, context.DeadlineExceeded)

	chk.NoError(c.Put(context.Background(), 1))
	ctx2, cancel2 := context.WithTimeout(context.Background(), blockedWait)
	defer cancel2()
	chk.ErrorIs(c.Put(ctx2, 2), context.DeadlineExceeded)
	chk.Equal(1, c.Len())
	chk.Equal(1, c.InFlight())

	// A waiter that gave up must not swallow the wakeup meant for the next.
	putDone := make(chan error, 1)
	go func() {
		putDone <- c.Put(context.Background(), 3)
	}()
	time.Sleep(blockedWait)
	v, err := c.Get(context.Background())
	chk.NoError(err)
	chk.Equal(1, v)
	chk.NoError(<-putDone)
	v, err = c.Get(context.Background())
	chk.NoError(err)
	chk.Equal(3, v)
}

func TestChannelGetStop(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 2)

	stop := make(chan struct{})
	getDone := make(chan error, 1)
	go func() {
		_, err := c.get(ctx, stop)
		getDone <- err
	}()
	time.Sleep(blockedWait)
	close(stop)
	chk.ErrorIs(<-getDone, errStopped)

	// An available value is preferred over stopping.
	chk.NoError(c.Put(ctx, 5))
	v, err := c.get(ctx, stop)
	chk.NoError(err)
	chk.Equal(5, v)
	_, err = c.get(ctx, stop)
	chk.ErrorIs(err, errStopped)
}

func TestChannelWaitDrained(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 4)

	chk.NoError(c.WaitDrained(ctx))

	chk.NoError(c.Put(ctx, 1))
	chk.NoError(c.Put(ctx, 2))
	drained := c.Drained()

	go func() {
		for range 2 {
			_, _ = c.Get(ctx)
			time.Sleep(time.Millisecond)
			c.MarkDone()
		}
	}()

	chk.NoError(c.WaitDrained(ctx))
	<-drained
	chk.Equal(0, c.InFlight())
}

// TestChannelWithRapid uses rapid state machine testing to verify FIFO order,
// the capacity bound, and in-flight accounting against a model. Operations
// that would block are skipped.
func TestChannelWithRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		capacity := rapid.IntRange(1, 8).Draw(t, "capacity")

		// The system under test
		c := newTestChannel[int](t, capacity)

		// The model
		var buffered []int
		inFlight := 0
		closed := false

		t.Repeat(map[string]func(*rapid.T){
			"put": func(t *rapid.T) {
				if len(buffered) == capacity && !closed {
					t.Skip("channel is full")
				}
				val := rapid.Int().Draw(t, "value")
				err := c.Put(ctx, val)
				if closed {
					require.ErrorIs(t, err, ErrChannelClosed)
					return
				}
				require.NoError(t, err)
				buffered = append(buffered, val)
				inFlight++
			},
			"get": func(t *rapid.T) {
				if len(buffered) == 0 && !closed {
					t.Skip("channel is empty")
				}
				val, err := c.Get(ctx)
				if len(buffered) == 0 {
					require.ErrorIs(t, err, ErrChannelClosed)
					return
				}
				require.NoError(t, err)
				require.Equal(t, buffered[0], val, "FIFO order violated")
				buffered = buffered[1:]
			},
			"markDone": func(t *rapid.T) {
				if inFlight == len(buffered) {
					t.Skip("nothing dequeued and not yet done")
				}
				c.MarkDone()
				inFlight--
			},
			"close": func(t *rapid.T) {
				c.Close()
				closed = true
			},
			"": func(t *rapid.T) {
				require.Equal(t, len(buffered), c.Len())
				require.LessOrEqual(t, c.Len(), capacity)
				require.Equal(t, inFlight, c.InFlight())
				require.Equal(t, closed, c.Closed())
			},
		})
	})
}

func TestChannelConcurrency(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	c := newTestChannel[int](t, 4)

	numWriters := max(2, runtime.NumCPU()/2)
	numReaders := max(2, runtime.NumCPU()/2)
	iterations := 10_000
	if testing.Short() {
		iterations /= 10
	}

	var writerWg sync.WaitGroup
	writerWg.Add(numWriters)
	for id := range numWriters {
		go func() {
			defer writerWg.Done()
			for i := range iterations {
				if err := c.Put(ctx, id*iterations+i); err != nil {
					panic(err)
				}
			}
		}()
	}

	seen := make([][]int, numReaders)
	var readerWg sync.WaitGroup
	readerWg.Add(numReaders)
	for id := range numReaders {
		go func() {
			defer readerWg.Done()
			for {
				v, err := c.Get(ctx)
				if err != nil {
					return
				}
				seen[id] = append(seen[id], v)
				c.MarkDone()
			}
		}()
	}

	writerWg.Wait()
	chk.NoError(c.WaitDrained(ctx))
	c.Close()
	readerWg.Wait()

	// No loss and no duplication.
	counts := make(map[int]int)
	for _, values := range seen {
		// Values from any one writer arrive at any one reader in order.
		last := make(map[int]int)
		for _, v := range values {
			writer := v / iterations
			if prev, ok := last[writer]; ok {
				chk.Less(prev, v)
			}
			last[writer] = v
			counts[v]++
		}
	}
	chk.Len(counts, numWriters*iterations)
	for v, n := range counts {
		chk.Equal(1, n, "value %d seen %d times", v, n)
	}
	chk.LessOrEqual(c.PeakInFlight(), c.Cap()+numReaders)
}
