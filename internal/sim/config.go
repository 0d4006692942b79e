// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import "time"

var DefaultConfig = Config{
	Producers: BiasedIntConfig{Min: 0, Med: 2, Max: 4},
	Consumers: BiasedIntConfig{Min: 1, Med: 2, Max: 5},
	Capacity:  BiasedIntConfig{Min: 1, Med: 2, Max: 6},
	Items:     BiasedIntConfig{Min: 0, Med: 3, Max: 8},
	ProduceTime: BiasedDurationConfig{
		Min: 0,
		Med: 500 * time.Microsecond,
		Max: 3 * time.Millisecond,
	},
	ConsumeTime: BiasedDurationConfig{
		Min: 0,
		Med: 1 * time.Millisecond,
		Max: 5 * time.Millisecond,
	},
	ProduceErrorProbability: 0.1,
	ConsumeErrorProbability: 0.05,
	ConsumePanicProbability: 0.05,
}

type Config struct {
	Producers BiasedIntConfig
	Consumers BiasedIntConfig
	Capacity  BiasedIntConfig
	// Items is drawn once per producer.
	Items BiasedIntConfig

	ProduceTime BiasedDurationConfig
	ConsumeTime BiasedDurationConfig

	// ProduceErrorProbability is the chance that a producer's last produce
	// call fails. The consume probabilities apply per item, but fewer
	// consume failures than consumers are ever planned so that the channel
	// can always drain.
	ProduceErrorProbability float64
	ConsumeErrorProbability float64
	ConsumePanicProbability float64
}
