// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import (
	"fmt"
	"time"

	"pgregory.net/rapid"
)

type BiasedIntConfig struct {
	Min int
	Med int
	Max int
}

func (c *BiasedIntConfig) Draw(t *rapid.T, name string) int {
	if c.Med < c.Min || c.Max < c.Med {
		panic(fmt.Sprint("invalid BiasedIntConfig:", *c))
	}
	return rapid.Custom(func(t *rapid.T) int {
		// Drawing from [min-med, max-med] rather than [min, max] lets rapid's
		// bias toward zero favor the median.
		return c.Med + rapid.IntRange(c.Min-c.Med, c.Max-c.Med).Draw(t, name+"(internal)")
	}).Draw(t, name)
}

type BiasedDurationConfig struct {
	Min time.Duration
	Med time.Duration
	Max time.Duration
}

func (c *BiasedDurationConfig) Draw(t *rapid.T, name string) time.Duration {
	if c.Med < c.Min || c.Max < c.Med {
		panic(fmt.Sprint("invalid BiasedDurationConfig:", *c))
	}
	return rapid.Custom(func(t *rapid.T) time.Duration {
		return c.Med + time.Duration(rapid.Int64Range(int64(c.Min-c.Med), int64(c.Max-c.Med)).
			Draw(t, name+"(internal)"))
	}).Draw(t, name)
}

// BiasedBool returns a rapid generator for boolean values that are true with
// probability p.
func BiasedBool(p float64) *rapid.Generator[bool] {
	notOne := func(v float64) bool { return v != 1 }
	return rapid.Custom(func(t *rapid.T) bool {
		return rapid.Float64Range(0, 1).Filter(notOne).Draw(t, "p") < p || p == 1.0
	})
}
