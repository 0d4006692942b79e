// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package sim provides a way to generate and execute simulated pcq runs. It
// draws a plan for each run: how many producers, consumers and channel slots
// there are, how long each item takes to produce and to consume, and which
// produce or consume calls fail. A discrete-event model of the same plan
// predicts the run's counts and a range for its elapsed time, which can then
// be compared with what a real [pcq.Supervisor] does with the plan.
package sim
