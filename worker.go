// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/petenewcomb/pcq-go/internal/state"
)

// Role distinguishes producers from consumers.
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
)

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// WorkerID identifies a worker within a run.
type WorkerID struct {
	Role  Role
	Index int
}

func (id WorkerID) String() string {
	return fmt.Sprintf("%v %d", id.Role, id.Index)
}

// WorkerState is a stage in a worker's lifecycle. Workers move from
// [WorkerCreated] to [WorkerRunning] and then to exactly one of
// [WorkerFinished] or [WorkerFailed].
type WorkerState = state.Stage

const (
	WorkerCreated  = state.StageCreated
	WorkerRunning  = state.StageRunning
	WorkerFinished = state.StageFinished
	WorkerFailed   = state.StageFailed
)

// A Worker is a handle on one producer or consumer goroutine. It can be asked
// to stop and awaited for its result.
//
// Stopping is cooperative: the request is checked between units of work and
// never interrupts one already in progress. To abort blocked channel
// operations immediately, close the channel instead (see
// [Supervisor.Shutdown]).
type Worker struct {
	id       WorkerID
	state    state.Lifecycle
	stopCh   chan struct{}
	stopOnce sync.Once
	err      error // written before state reaches a terminal stage
}

func newWorker(id WorkerID) *Worker {
	w := &Worker{
		id:     id,
		stopCh: make(chan struct{}),
	}
	w.state.Init()
	return w
}

// ID returns the worker's identity.
func (w *Worker) ID() WorkerID {
	return w.id
}

// State returns the worker's current lifecycle stage.
func (w *Worker) State() WorkerState {
	return w.state.Stage()
}

// Stop asks the worker to exit at its next checked boundary. Stop is
// thread-safe, and calling it more than once, or after the worker has
// terminated, has no additional effect.
func (w *Worker) Stop() {
	if w.state.Stage().Terminal() {
		return
	}
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Stopping returns a channel that is closed once Stop has been called.
func (w *Worker) Stopping() <-chan struct{} {
	return w.stopCh
}

// Done returns a channel that is closed when the worker terminates.
func (w *Worker) Done() <-chan struct{} {
	return w.state.Done()
}

// Err returns the error recorded by the worker, or nil if it has not
// terminated or finished successfully. Non-nil errors are always of type
// *[WorkerError].
func (w *Worker) Err() error {
	select {
	case <-w.state.Done():
		return w.err
	default:
		return nil
	}
}

// Wait blocks until the worker terminates and returns its error, or returns
// ctx.Err() if ctx ends first.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.state.Done():
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes body as the worker's single unit of lifecycle. Panics are
// recovered and recorded rather than crashing the process.
func (w *Worker) run(ctx context.Context, body func(ctx context.Context) error) (err error) {
	if !w.state.Start() {
		panic("worker started more than once")
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			err = &WorkerError{Worker: w.id, Err: err}
		}
		w.err = err
		w.state.Finish(err != nil)
	}()
	return body(ctx)
}
