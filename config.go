// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config describes a single run. It is passed explicitly to [Start] or [Run];
// the package keeps no process-wide state.
type Config struct {
	// Producers is the number of producer workers. Zero is allowed and
	// results in an empty run.
	Producers int

	// Consumers is the number of consumer workers. Must be at least one.
	Consumers int

	// Capacity is the channel's fixed capacity. Must be at least one.
	Capacity int

	// Items returns how many items each producer makes. Nil means zero.
	Items CountFunc

	// ProduceDelay, if non-nil, is waited before producing each item.
	// ConsumeDelay, if non-nil, is waited after dequeuing each item and
	// before calling the ConsumeFunc. Both waits are part of the simulated
	// unit of work; they end early only if the run's context is canceled.
	ProduceDelay DelayFunc
	ConsumeDelay DelayFunc

	// Now stamps items as they are produced. Defaults to time.Now.
	Now func() time.Time

	// Logger receives lifecycle and failure logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Validate reports whether c describes a run that can be started.
func (c *Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("%w: got %d", ErrCapacityMisconfigured, c.Capacity)
	}
	if c.Producers < 0 {
		return fmt.Errorf("%w: producers must not be negative, got %d", ErrWorkersMisconfigured, c.Producers)
	}
	if c.Consumers < 1 {
		return fmt.Errorf("%w: at least one consumer is required, got %d", ErrWorkersMisconfigured, c.Consumers)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Items == nil {
		c.Items = func(int) int { return 0 }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// FixedCount returns a CountFunc under which every producer makes n items.
func FixedCount(n int) CountFunc {
	return func(int) int { return n }
}

// FixedDelay returns a DelayFunc that always waits d.
func FixedDelay(d time.Duration) DelayFunc {
	return func() time.Duration { return d }
}
