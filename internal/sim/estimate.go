// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import (
	"cmp"
	"time"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type EstimateConfig struct {
	JitterUnit time.Duration
	MinJitter  int
	MaxJitter  int
	Debug      bool
}

// Estimate models the plan trialCount times and returns the range of results.
// Counts are the same in every trial; only the elapsed time varies with
// jitter and with the order in which simultaneous events are handled.
func Estimate(t *rapid.T, plan *Plan, trialCount int, config *EstimateConfig) *ResultRange {
	rr := &ResultRange{}
	for range trialCount {
		rr.MergeResult(t, estimate(t, plan, config))
	}
	return rr
}

// estimate runs a discrete-event model of the plan. Producers wait their
// produce time before each put, block while the channel is full, and resume
// in arrival order as slots free up. Idle consumers take items in FIFO order
// and are busy for the item's consume time. A consumer whose item fails
// leaves the run.
func estimate(t *rapid.T, plan *Plan, config *EstimateConfig) *Result {
	chk := require.New(t)
	var simTime time.Duration
	var eventHeap heap.Heap[event, heap.Min]

	if config.MinJitter < 0 {
		panic("MinJitter may not be less than zero")
	}
	if config.MaxJitter < config.MinJitter {
		panic("MaxJitter may not be less than MinJitter")
	}
	if config.JitterUnit < 0 {
		panic("JitterUnit may not be less than zero")
	}

	jitter := func() time.Duration {
		return config.JitterUnit*time.Duration(rapid.IntRange(config.MinJitter, config.MaxJitter-1).Draw(t, "jitterUnits")) +
			time.Duration(rapid.Int64Range(0, int64(config.JitterUnit)).Draw(t, "jitterNoise"))
	}
	if config.MaxJitter == 0 || config.JitterUnit == 0 {
		jitter = func() time.Duration {
			return 0
		}
	}
	schedule := func(after time.Duration, f func()) {
		heap.PushOrderable(&eventHeap, event{Time: simTime + jitter() + after, Func: f})
	}
	debugf := func(format string, args ...any) {
		if config.Debug {
			t.Logf("%v %v "+format, append([]any{simTime, plan}, args...)...)
		}
	}

	var result Result
	var buffer deque.Deque[*ItemPlan]
	var blockedPuts deque.Deque[*ItemPlan]
	idleConsumers := plan.Consumers
	inFlight := 0

	var startProduce func(p *Producer, seq int)
	var dispatch func()

	admit := func(item *ItemPlan) {
		buffer.PushBack(item)
		inFlight++
		result.Produced++
		result.PeakInFlight = max(result.PeakInFlight, inFlight)
		startProduce(&plan.Producers[item.Producer], item.Seq+1)
	}

	startProduce = func(p *Producer, seq int) {
		if seq == len(p.Items) {
			if p.Fail {
				debugf("producer %d will fail", p.Index)
				schedule(0, func() {
					debugf("producer %d failed", p.Index)
					result.Errors++
				})
			}
			return
		}
		item := &p.Items[seq]
		schedule(item.ProduceTime, func() {
			if buffer.Len() < plan.Capacity {
				debugf("producer %d put item %d", item.Producer, item.Seq)
				admit(item)
				dispatch()
			} else {
				debugf("producer %d blocked with item %d behind %d others", item.Producer, item.Seq, blockedPuts.Len())
				blockedPuts.PushBack(item)
			}
		})
	}

	dispatch = func() {
		for idleConsumers > 0 && buffer.Len() > 0 {
			item := buffer.PopFront()
			idleConsumers--
			debugf("consuming item %d/%d, %d consumers idle", item.Producer, item.Seq, idleConsumers)
			if blockedPuts.Len() > 0 {
				admit(blockedPuts.PopFront())
			}
			schedule(item.ConsumeTime, func() {
				inFlight--
				chk.GreaterOrEqual(inFlight, 0)
				if item.Outcome == Succeed {
					result.Consumed++
					idleConsumers++
				} else {
					debugf("consumer exits after item %d/%d (%v)", item.Producer, item.Seq, item.Outcome)
					result.Failed++
					result.Errors++
				}
				dispatch()
			})
		}
	}

	for i := range plan.Producers {
		startProduce(&plan.Producers[i], 0)
	}

	var concurrentEvents []event
	for {
		e, ok := heap.PopOrderable(&eventHeap)
		if !ok {
			break
		}
		concurrentEvents = concurrentEvents[:0]
		for {
			concurrentEvents = append(concurrentEvents, e)
			e, ok = heap.Peek(&eventHeap)
			if !ok || e.Time != concurrentEvents[0].Time {
				break
			}
			_, _ = heap.PopOrderable(&eventHeap)
		}
		if len(concurrentEvents) > 1 {
			concurrentEvents = rapid.Permutation(concurrentEvents).Draw(t, "concurrentEvents")
		}
		for _, e := range concurrentEvents {
			simTime = e.Time
			e.Func()
		}
	}

	chk.Zero(buffer.Len(), "%v: items left in buffer", plan)
	chk.Zero(blockedPuts.Len(), "%v: producers left blocked", plan)
	chk.Zero(inFlight, "%v: items left in flight", plan)

	result.Elapsed = simTime
	debugf("estimate done: %+v", result)
	return &result
}

type event struct {
	Time time.Duration
	Func func()
}

func (a *event) Cmp(b *event) int {
	return cmp.Compare(a.Time, b.Time)
}
