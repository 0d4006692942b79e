// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewPlanRespectsConfig(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		config := DefaultConfig
		plan := NewPlan(t, &config)

		chk.GreaterOrEqual(plan.Consumers, config.Consumers.Min)
		chk.LessOrEqual(plan.Consumers, config.Consumers.Max)
		chk.GreaterOrEqual(plan.Capacity, config.Capacity.Min)
		chk.LessOrEqual(plan.Capacity, config.Capacity.Max)
		chk.Less(plan.ConsumeFailures, plan.Consumers, "consume failures must leave a consumer alive")

		items, failures, produceFailures := 0, 0, 0
		for i, p := range plan.Producers {
			chk.Equal(i, p.Index)
			for seq, item := range p.Items {
				chk.Equal(i, item.Producer)
				chk.Equal(seq, item.Seq)
				chk.Same(&plan.Producers[i].Items[seq], plan.Item(i, seq))
				if item.Outcome != Succeed {
					failures++
				}
			}
			if p.Fail {
				produceFailures++
				chk.Equal(len(p.Items)+1, p.Calls())
			} else {
				chk.Equal(len(p.Items), p.Calls())
			}
			items += len(p.Items)
		}
		chk.Equal(items, plan.ItemCount)
		chk.Equal(failures, plan.ConsumeFailures)
		chk.Equal(produceFailures, plan.ProduceFailures)
	})
}

func singleProducerPlan(capacity, consumers int, produceTime, consumeTime time.Duration, n int) *Plan {
	plan := &Plan{Consumers: consumers, Capacity: capacity}
	p := Producer{}
	for seq := range n {
		p.Items = append(p.Items, ItemPlan{
			Seq:         seq,
			ProduceTime: produceTime,
			ConsumeTime: consumeTime,
		})
	}
	plan.Producers = []Producer{p}
	plan.ItemCount = n
	return plan
}

func TestEstimateLockstep(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		// Each item is consumed before the next one is produced.
		plan := singleProducerPlan(1, 1, time.Millisecond, time.Millisecond, 3)
		r := estimate(t, plan, &EstimateConfig{})
		chk.Equal(3, r.Produced)
		chk.Equal(3, r.Consumed)
		chk.Equal(0, r.Errors)
		// A put and a completion that coincide may be handled in either order.
		chk.GreaterOrEqual(r.PeakInFlight, 1)
		chk.LessOrEqual(r.PeakInFlight, 2)
		chk.Equal(4*time.Millisecond, r.Elapsed)
	})
}

func TestEstimateBackpressure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		// A slow consumer fills the single slot and the third put blocks
		// until the first item is done.
		plan := singleProducerPlan(1, 1, time.Millisecond, 5*time.Millisecond, 3)
		r := estimate(t, plan, &EstimateConfig{})
		chk.Equal(3, r.Produced)
		chk.Equal(3, r.Consumed)
		chk.Equal(2, r.PeakInFlight)
		chk.Equal(16*time.Millisecond, r.Elapsed)
	})
}

func TestEstimateConsumerFailure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		plan := singleProducerPlan(4, 2, 0, time.Millisecond, 4)
		plan.Producers[0].Items[0].Outcome = ReturnError
		plan.Producers[0].Fail = true
		r := estimate(t, plan, &EstimateConfig{})
		chk.Equal(4, r.Produced)
		chk.Equal(3, r.Consumed)
		chk.Equal(1, r.Failed)
		chk.Equal(2, r.Errors)
		// Two consumers share the first two items, after which only one is
		// left for the remaining two.
		chk.Equal(3*time.Millisecond, r.Elapsed)
	})
}

func TestEstimateJitterWidensRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		plan := singleProducerPlan(2, 2, time.Millisecond, 2*time.Millisecond, 5)
		base := Estimate(t, plan, 1, &EstimateConfig{})
		jittered := Estimate(t, plan, 5, &EstimateConfig{
			JitterUnit: 100 * time.Microsecond,
			MinJitter:  1,
			MaxJitter:  5,
		})
		chk.Equal(base.Produced, jittered.Produced)
		chk.Equal(5, jittered.Trials)
		chk.Greater(jittered.MinElapsed, base.MinElapsed)
		chk.GreaterOrEqual(jittered.MaxElapsed, jittered.MinElapsed)

		merged := &ResultRange{}
		merged.MergeRange(t, base)
		merged.MergeRange(t, jittered)
		chk.Equal(6, merged.Trials)
		chk.Equal(base.MinElapsed, merged.MinElapsed)
		chk.Equal(jittered.MaxElapsed, merged.MaxElapsed)
	})
}
