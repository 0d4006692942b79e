// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import (
	"fmt"
	"time"

	"pgregory.net/rapid"
)

// Outcome is what a planned consume call does once its time has elapsed.
type Outcome int

const (
	Succeed Outcome = iota
	ReturnError
	Panic
)

func (o Outcome) String() string {
	switch o {
	case Succeed:
		return "succeed"
	case ReturnError:
		return "error"
	case Panic:
		return "panic"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type Plan struct {
	ID        int
	Producers []Producer
	Consumers int
	Capacity  int

	// Totals derived from the producers.
	ItemCount       int
	ConsumeFailures int
	ProduceFailures int
	// CriticalPath is the longest chain of produce times followed by one
	// consume time. No run of the plan can finish sooner.
	CriticalPath time.Duration
}

type Producer struct {
	Index int
	Items []ItemPlan
	// Fail makes the produce call after the last planned item fail, ending
	// the producer.
	Fail bool
}

// Calls is the number of produce calls the producer makes.
func (p *Producer) Calls() int {
	if p.Fail {
		return len(p.Items) + 1
	}
	return len(p.Items)
}

type ItemPlan struct {
	Producer    int
	Seq         int
	ProduceTime time.Duration
	ConsumeTime time.Duration
	Outcome     Outcome
}

func (p *Plan) String() string {
	return fmt.Sprintf("Plan#%d", p.ID)
}

var nextPlanID int

// NewPlan draws a plan according to config.
func NewPlan(t *rapid.T, config *Config) *Plan {
	plan := &Plan{
		ID:        nextPlanID,
		Consumers: config.Consumers.Draw(t, "Consumers"),
		Capacity:  config.Capacity.Draw(t, "Capacity"),
	}
	nextPlanID++

	producerCount := config.Producers.Draw(t, "Producers")
	plan.Producers = make([]Producer, producerCount)
	failureBudget := plan.Consumers - 1
	for i := range plan.Producers {
		name := fmt.Sprintf("Producer#%d", i)
		p := &plan.Producers[i]
		p.Index = i
		p.Items = make([]ItemPlan, config.Items.Draw(t, name+".Items"))
		var produced time.Duration
		for seq := range p.Items {
			itemName := fmt.Sprintf("%s.Item#%d", name, seq)
			item := ItemPlan{
				Producer:    i,
				Seq:         seq,
				ProduceTime: config.ProduceTime.Draw(t, itemName+".ProduceTime"),
				ConsumeTime: config.ConsumeTime.Draw(t, itemName+".ConsumeTime"),
			}
			if failureBudget > 0 {
				switch {
				case BiasedBool(config.ConsumeErrorProbability).Draw(t, itemName+".ReturnError"):
					item.Outcome = ReturnError
				case BiasedBool(config.ConsumePanicProbability).Draw(t, itemName+".Panic"):
					item.Outcome = Panic
				}
				if item.Outcome != Succeed {
					failureBudget--
					plan.ConsumeFailures++
				}
			}
			produced += item.ProduceTime
			plan.CriticalPath = max(plan.CriticalPath, produced+item.ConsumeTime)
			p.Items[seq] = item
		}
		p.Fail = BiasedBool(config.ProduceErrorProbability).Draw(t, name+".Fail")
		if p.Fail {
			plan.ProduceFailures++
		}
		plan.ItemCount += len(p.Items)
	}
	t.Logf("%v: producers=%d consumers=%d capacity=%d items=%d consumeFailures=%d produceFailures=%d",
		plan, len(plan.Producers), plan.Consumers, plan.Capacity,
		plan.ItemCount, plan.ConsumeFailures, plan.ProduceFailures)
	return plan
}

// Item returns the plan for the given producer's item.
func (p *Plan) Item(producer, seq int) *ItemPlan {
	return &p.Producers[producer].Items[seq]
}
