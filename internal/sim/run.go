// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petenewcomb/pcq-go"
	"github.com/petenewcomb/pcq-go/internal/timerp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Observation is what a real run of a plan did.
type Observation struct {
	Report pcq.Report
	Err    error
	// Attempts counts consume calls per item, keyed by producer and seq.
	Attempts map[[2]int]int
	// MaxBusyConsumers is the largest number of consume calls that were in
	// progress at once.
	MaxBusyConsumers int64
}

// Run executes the plan with a real supervisor, checking from inside the
// produce and consume functions that the plan is being followed.
func Run(t require.TestingT, ctx context.Context, plan *Plan, logger *zap.Logger) *Observation {
	c := &controller{
		Plan:     plan,
		Attempts: make(map[[2]int]int),
	}
	return c.Run(t, ctx, logger)
}

type controller struct {
	Plan             *Plan
	BusyConsumers    atomic.Int64
	MaxBusyConsumers atomicMinMaxInt64
	AttemptsMutex    sync.Mutex
	Attempts         map[[2]int]int
}

func (c *controller) Run(t require.TestingT, ctx context.Context, logger *zap.Logger) *Observation {
	lt := &localT{}
	cfg := pcq.Config{
		Producers: len(c.Plan.Producers),
		Consumers: c.Plan.Consumers,
		Capacity:  c.Plan.Capacity,
		Items: func(producer int) int {
			return c.Plan.Producers[producer].Calls()
		},
		Logger: logger,
	}
	report, err := pcq.Run(ctx, cfg, c.produce, c.newConsumeFunc(lt))
	lt.DrainTo(t)
	return &Observation{
		Report:           report,
		Err:              err,
		Attempts:         c.Attempts,
		MaxBusyConsumers: c.MaxBusyConsumers.Load(),
	}
}

func (c *controller) produce(ctx context.Context, producer, seq int) (*ItemPlan, error) {
	p := &c.Plan.Producers[producer]
	if seq == len(p.Items) {
		return nil, &PlannedError{What: fmt.Sprintf("producer %d seq %d", producer, seq)}
	}
	item := &p.Items[seq]
	if err := timerp.Sleep(ctx, item.ProduceTime); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *controller) newConsumeFunc(lt *localT) pcq.ConsumeFunc[*ItemPlan] {
	chk := require.New(lt)
	return func(ctx context.Context, it pcq.Item[*ItemPlan]) error {
		item := it.Value
		chk.Equal(item.Producer, it.Producer)
		chk.Equal(item.Seq, it.Seq)

		c.AttemptsMutex.Lock()
		c.Attempts[[2]int{it.Producer, it.Seq}]++
		c.AttemptsMutex.Unlock()

		busy := c.BusyConsumers.Add(1)
		defer c.BusyConsumers.Add(-1)
		c.MaxBusyConsumers.UpdateMax(busy)
		chk.LessOrEqual(busy, int64(c.Plan.Consumers))

		if err := timerp.Sleep(ctx, item.ConsumeTime); err != nil {
			return err
		}
		switch item.Outcome {
		case ReturnError:
			return &PlannedError{What: fmt.Sprintf("consume of %d/%d", item.Producer, item.Seq)}
		case Panic:
			panic(&PlannedError{What: fmt.Sprintf("consume of %d/%d", item.Producer, item.Seq)})
		}
		return nil
	}
}

// PlannedError is returned or panicked by a simulated function the plan
// told to fail.
type PlannedError struct {
	What string
}

func (e *PlannedError) Error() string {
	return "planned failure of " + e.What
}

// IsPlanned reports whether err is, or is a panic carrying, a planned
// failure.
func IsPlanned(err error) bool {
	var pe *PlannedError
	if errors.As(err, &pe) {
		return true
	}
	var panicErr *pcq.PanicError
	if errors.As(err, &panicErr) {
		_, ok := panicErr.Value.(*PlannedError)
		return ok
	}
	return false
}

// localT collects assertion failures made on worker goroutines so that they
// can be replayed on the test goroutine.
type localT struct {
	mu    sync.Mutex
	calls []func(require.TestingT)
}

func (lt *localT) Errorf(format string, args ...any) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.calls = append(lt.calls, func(t require.TestingT) {
		t.Errorf(format, args...)
	})
}

func (lt *localT) FailNow() {
	lt.mu.Lock()
	lt.calls = append(lt.calls, func(t require.TestingT) {
		t.FailNow()
	})
	lt.mu.Unlock()
	// The supervisor recovers this, failing only the calling consumer.
	panic(lt)
}

func (lt *localT) DrainTo(t require.TestingT) {
	lt.mu.Lock()
	calls := lt.calls
	lt.calls = nil
	lt.mu.Unlock()
	for _, call := range calls {
		call(t)
	}
}

type atomicMinMaxInt64 struct {
	value atomic.Int64
}

func (mm *atomicMinMaxInt64) Load() int64 {
	return mm.value.Load()
}

func (mm *atomicMinMaxInt64) UpdateMax(x int64) {
	for {
		old := mm.value.Load()
		if x <= old || mm.value.CompareAndSwap(old, x) {
			return
		}
	}
}

