// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package pcq provides a bounded producer/consumer core: a fixed-capacity FIFO
// [Channel] fed by a set of producer workers and drained by a set of consumer
// workers, coordinated by a [Supervisor] that knows when it is safe to shut
// down.
//
// The capacity bound provides backpressure. When consumers fall behind,
// producers block in [Channel.Put] instead of letting the queue grow.
//
// Completion is tracked separately from dequeue. Every item put into the
// channel is counted as in flight until a consumer calls [Channel.MarkDone]
// after processing it, so the supervisor can wait for a true drain before it
// asks any consumer to stop. Shutdown is therefore staged: producers finish,
// the channel drains, and only then are consumers stopped and joined.
//
// Two ways of ending work are kept distinct. [Worker.Stop] is cooperative and
// is only observed between units of work; it never interrupts processing that
// has already begun. [Channel.Close], reachable through [Supervisor.Shutdown],
// is the forced path that immediately releases every blocked Put and Get.
//
// Failures are isolated per worker. A panicking or failing worker records its
// error and exits without disturbing its siblings, and the supervisor reports
// every recorded error once the run is over.
package pcq
