// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// Stage represents the possible stages in a worker's lifecycle.
type Stage int32

const (
	// StageCreated indicates that the worker exists but has not started.
	StageCreated Stage = iota
	// StageRunning indicates that the worker's unit of work is executing.
	StageRunning
	// StageFinished indicates that the worker returned without error.
	StageFinished
	// StageFailed indicates that the worker returned an error or panicked.
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageRunning:
		return "running"
	case StageFinished:
		return "finished"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageFinished || s == StageFailed
}

// Lifecycle encapsulates the stage transitions of a single worker. Each
// transition is a compare-and-swap, so racing callers observe exactly one
// winner and the done channel is closed exactly once.
type Lifecycle struct {
	current atomic.Int32 // Contains a Stage value
	done    chan struct{}
}

// Init initializes a Lifecycle to the Created stage, and must be called
// exactly once before any other methods. An Init method is provided instead
// of a New function because Lifecycle is expected to be an embedded field.
func (lc *Lifecycle) Init() {
	lc.current.Store(int32(StageCreated))
	lc.done = make(chan struct{})
}

// Start attempts the Created → Running transition.
func (lc *Lifecycle) Start() bool {
	return lc.current.CompareAndSwap(int32(StageCreated), int32(StageRunning))
}

// Finish attempts the Running → Finished or Running → Failed transition and
// closes the done channel if it succeeds.
func (lc *Lifecycle) Finish(failed bool) bool {
	next := StageFinished
	if failed {
		next = StageFailed
	}
	if !lc.current.CompareAndSwap(int32(StageRunning), int32(next)) {
		return false
	}
	close(lc.done)
	return true
}

// Stage returns the current stage.
func (lc *Lifecycle) Stage() Stage {
	return Stage(lc.current.Load())
}

// Done returns the channel that will be closed when a terminal stage is
// reached.
func (lc *Lifecycle) Done() <-chan struct{} {
	return lc.done
}
