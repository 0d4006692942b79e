// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package pcq

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petenewcomb/pcq-go/internal/timerp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// A Supervisor owns the channel and the workers of a single run. It is
// created by [Start], which spawns every worker immediately, and completed by
// [Supervisor.AwaitCompletion], which shuts the run down in stages:
//
//  1. wait for every producer to terminate;
//  2. wait for every produced item to be marked done (drain);
//  3. stop every consumer and wait for them to terminate.
//
// No consumer is asked to stop before the drain completes, so under normal
// operation every produced item is consumed. A failing worker does not abort
// its siblings; its error is collected and reported once the run is over.
type Supervisor[T any] struct {
	cfg     Config
	logger  *zap.Logger
	produce ProduceFunc[T]
	consume ConsumeFunc[T]

	ctx     context.Context
	cancel  context.CancelFunc
	ch      *Channel[Item[T]]
	started time.Time

	producers     []*Worker
	consumers     []*Worker
	producerGroup errgroup.Group
	consumerGroup errgroup.Group
	producersDone chan struct{}
	consumersDone chan struct{}

	produced atomic.Int64
	consumed atomic.Int64
	failed   atomic.Int64

	errsMu sync.Mutex
	errs   []error

	awaitOnce sync.Once
	report    Report
	err       error
}

// Report summarizes a completed run.
type Report struct {
	// Produced counts items successfully put into the channel.
	Produced int
	// Consumed counts dequeued items whose processing succeeded, and Failed
	// those whose processing returned an error or panicked.
	Consumed int
	Failed   int
	// PeakInFlight is the largest number of items that were simultaneously
	// put but not yet marked done.
	PeakInFlight int
	Elapsed      time.Duration
	// Errors lists every recorded failure in the order it occurred.
	Errors []error
}

// OK reports whether the run completed without any recorded failure.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// Run starts a run with [Start] and waits for it with
// [Supervisor.AwaitCompletion].
func Run[T any](
	ctx context.Context,
	cfg Config,
	produce ProduceFunc[T],
	consume ConsumeFunc[T],
) (Report, error) {
	s, err := Start(ctx, cfg, produce, consume)
	if err != nil {
		return Report{}, err
	}
	return s.AwaitCompletion(ctx)
}

// Start validates cfg, creates the channel and spawns every producer and
// consumer. The context passed to Start is the root of the context passed to
// every ProduceFunc and ConsumeFunc; canceling it aborts delays and blocked
// channel operations, failing the workers involved.
//
// Every successful call to Start must be followed by a call to
// [Supervisor.AwaitCompletion] to release the run's goroutines.
func Start[T any](
	ctx context.Context,
	cfg Config,
	produce ProduceFunc[T],
	consume ConsumeFunc[T],
) (*Supervisor[T], error) {
	if produce == nil {
		panic("produce function must be non-nil")
	}
	if consume == nil {
		panic("consume function must be non-nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ch, err := NewChannel[Item[T]](cfg.Capacity)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Supervisor[T]{
		cfg:           cfg,
		logger:        cfg.Logger,
		produce:       produce,
		consume:       consume,
		ctx:           ctx,
		cancel:        cancel,
		ch:            ch,
		started:       cfg.Now(),
		producersDone: make(chan struct{}),
		consumersDone: make(chan struct{}),
	}

	s.logger.Info("starting run",
		zap.Int("producers", cfg.Producers),
		zap.Int("consumers", cfg.Consumers),
		zap.Int("capacity", cfg.Capacity))

	for i := range cfg.Consumers {
		w := newWorker(WorkerID{Role: RoleConsumer, Index: i})
		s.consumers = append(s.consumers, w)
		s.spawn(&s.consumerGroup, w, s.consumeLoop(w))
	}
	for i := range cfg.Producers {
		w := newWorker(WorkerID{Role: RoleProducer, Index: i})
		s.producers = append(s.producers, w)
		s.spawn(&s.producerGroup, w, s.produceLoop(w, max(0, cfg.Items(i))))
	}

	go s.join(&s.producerGroup, s.producersDone, "producers")
	go s.join(&s.consumerGroup, s.consumersDone, "consumers")

	return s, nil
}

// Channel returns the run's channel.
func (s *Supervisor[T]) Channel() *Channel[Item[T]] {
	return s.ch
}

// Producers returns the run's producer handles, ordered by index.
func (s *Supervisor[T]) Producers() []*Worker {
	return slices.Clone(s.producers)
}

// Consumers returns the run's consumer handles, ordered by index.
func (s *Supervisor[T]) Consumers() []*Worker {
	return slices.Clone(s.consumers)
}

// Shutdown forces the run to end without draining by closing the channel.
// Blocked producers fail with [ErrChannelClosed] and no further items can be
// produced. Consumers still process whatever was already buffered and then
// exit. Shutdown is thread-safe and may be called more than once; it returns
// immediately, so [Supervisor.AwaitCompletion] must still be called.
func (s *Supervisor[T]) Shutdown() {
	s.logger.Info("forced shutdown requested")
	s.ch.Close()
}

// AwaitCompletion waits for the run to end and returns its report along with
// the first error recorded, if any. See [Supervisor] for the shutdown stages.
//
// If every consumer terminates while producers are still running or items
// remain in flight, the channel is closed and [ErrConsumersExited] is
// recorded rather than waiting forever.
//
// If ctx ends first, the run is forcibly shut down: the channel is closed and
// the context passed to workers is canceled. AwaitCompletion then waits for
// every worker to terminate and returns ctx.Err().
//
// AwaitCompletion is thread-safe. Only the first call does any work; the rest
// wait for it and return the same results.
func (s *Supervisor[T]) AwaitCompletion(ctx context.Context) (Report, error) {
	s.awaitOnce.Do(func() {
		s.report, s.err = s.awaitCompletion(ctx)
	})
	return s.report, s.err
}

func (s *Supervisor[T]) awaitCompletion(ctx context.Context) (Report, error) {
	defer s.cancel()

	s.logger.Debug("waiting for producers")
	select {
	case <-s.producersDone:
	case <-s.consumersDone:
		// Nothing can make room for producers blocked on a full channel, so
		// make them fail rather than wait forever.
		s.ch.Close()
		select {
		case <-s.producersDone:
		case <-ctx.Done():
			return s.abort(ctx.Err())
		}
	case <-ctx.Done():
		return s.abort(ctx.Err())
	}

	stalled := false
	s.logger.Debug("waiting for drain", zap.Int("in_flight", s.ch.InFlight()))
	select {
	case <-s.ch.Drained():
	case <-s.consumersDone:
		select {
		case <-s.ch.Drained():
		default:
			stalled = true
			s.ch.Close()
		}
	case <-ctx.Done():
		return s.abort(ctx.Err())
	}
	if stalled {
		s.logger.Error("consumers exited before drain",
			zap.Int("in_flight", s.ch.InFlight()))
		s.recordErr(ErrConsumersExited)
	}

	s.logger.Debug("stopping consumers")
	for _, w := range s.consumers {
		w.Stop()
	}
	select {
	case <-s.consumersDone:
	case <-ctx.Done():
		return s.abort(ctx.Err())
	}

	report := s.buildReport()
	s.logger.Info("run complete",
		zap.Int("produced", report.Produced),
		zap.Int("consumed", report.Consumed),
		zap.Int("failed", report.Failed),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("elapsed", report.Elapsed))
	if len(report.Errors) > 0 {
		return report, report.Errors[0]
	}
	return report, nil
}

// abort tears the run down immediately and waits for every worker.
func (s *Supervisor[T]) abort(cause error) (Report, error) {
	s.logger.Warn("aborting run", zap.Error(cause))
	s.ch.Close()
	s.cancel()
	for _, w := range s.consumers {
		w.Stop()
	}
	<-s.producersDone
	<-s.consumersDone
	s.recordErr(cause)
	return s.buildReport(), cause
}

func (s *Supervisor[T]) buildReport() Report {
	s.errsMu.Lock()
	errs := slices.Clone(s.errs)
	s.errsMu.Unlock()
	return Report{
		Produced:     int(s.produced.Load()),
		Consumed:     int(s.consumed.Load()),
		Failed:       int(s.failed.Load()),
		PeakInFlight: s.ch.PeakInFlight(),
		Elapsed:      s.cfg.Now().Sub(s.started),
		Errors:       errs,
	}
}

func (s *Supervisor[T]) recordErr(err error) {
	s.errsMu.Lock()
	defer s.errsMu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *Supervisor[T]) spawn(group *errgroup.Group, w *Worker, body func(context.Context) error) {
	group.Go(func() error {
		s.logger.Debug("worker started", zap.Stringer("worker", w.id))
		err := w.run(s.ctx, body)
		if err != nil {
			s.recordErr(err)
			s.logger.Error("worker failed", zap.Stringer("worker", w.id), zap.Error(err))
		} else {
			s.logger.Debug("worker finished", zap.Stringer("worker", w.id))
		}
		return err
	})
}

func (s *Supervisor[T]) join(group *errgroup.Group, done chan<- struct{}, name string) {
	err := group.Wait()
	s.logger.Debug("all "+name+" terminated", zap.NamedError("first_error", err))
	close(done)
}

func (s *Supervisor[T]) produceLoop(w *Worker, n int) func(context.Context) error {
	return func(ctx context.Context) error {
		for seq := range n {
			select {
			case <-w.Stopping():
				return nil
			default:
			}
			if err := timerp.Sleep(ctx, delay(s.cfg.ProduceDelay)); err != nil {
				return err
			}
			v, err := s.produce(ctx, w.id.Index, seq)
			if err != nil {
				return err
			}
			item := Item[T]{
				Value:    v,
				Created:  s.cfg.Now(),
				Producer: w.id.Index,
				Seq:      seq,
			}
			if err := s.ch.Put(ctx, item); err != nil {
				return err
			}
			s.produced.Add(1)
			s.logger.Debug("produced item", zap.Stringer("worker", w.id), zap.Int("seq", seq))
		}
		return nil
	}
}

func (s *Supervisor[T]) consumeLoop(w *Worker) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			item, err := s.ch.get(ctx, w.Stopping())
			switch {
			case errors.Is(err, errStopped), errors.Is(err, ErrChannelClosed):
				return nil
			case err != nil:
				return err
			}
			if err := s.process(ctx, w, item); err != nil {
				return err
			}
		}
	}
}

// process runs one unit of consumer work. The item is marked done however
// processing ends, including by panic, so that drain detection never waits
// on an item whose consumer has gone.
func (s *Supervisor[T]) process(ctx context.Context, w *Worker, item Item[T]) error {
	ok := false
	defer func() {
		if ok {
			s.consumed.Add(1)
		} else {
			s.failed.Add(1)
		}
		s.ch.MarkDone()
	}()
	if err := timerp.Sleep(ctx, delay(s.cfg.ConsumeDelay)); err != nil {
		return err
	}
	if err := s.consume(ctx, item); err != nil {
		return err
	}
	ok = true
	s.logger.Debug("consumed item",
		zap.Stringer("worker", w.id),
		zap.Int("producer", item.Producer),
		zap.Int("seq", item.Seq))
	return nil
}

func delay(f DelayFunc) time.Duration {
	if f == nil {
		return 0
	}
	return f()
}
