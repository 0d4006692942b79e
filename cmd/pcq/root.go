// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/petenewcomb/pcq-go"
	"github.com/petenewcomb/pcq-go/otpcq"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	producers int
	consumers int
	capacity  int
	maxItems  int
	maxDelay  time.Duration
	seed      uint64
	timeout   time.Duration
	verbose   bool
	trace     bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "pcq",
		Short:        "Run producers and consumers over a bounded channel",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&opts.producers, "nprod", "p", 3, "number of producers")
	flags.IntVarP(&opts.consumers, "ncon", "c", 5, "number of consumers")
	flags.IntVar(&opts.capacity, "capacity", 10, "channel capacity")
	flags.IntVar(&opts.maxItems, "max-items", 10, "each producer makes between 0 and this many items")
	flags.DurationVar(&opts.maxDelay, "max-delay", time.Second, "upper bound of the random delay before each produce and consume")
	flags.Uint64Var(&opts.seed, "seed", 444, "random seed")
	flags.DurationVar(&opts.timeout, "timeout", 0, "abort the run after this long (0 means never)")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flags.BoolVar(&opts.trace, "trace", false, "export trace spans to stdout")
	return cmd
}

func newLogger(verbose bool, errOut io.Writer) *zap.Logger {
	level := zapcore.InfoLevel
	encoderConfig := zap.NewProductionEncoderConfig()
	if verbose {
		level = zapcore.DebugLevel
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(errOut)),
		level,
	)
	return zap.New(core)
}

// lockedRand serializes access to a seeded generator shared by every worker.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *lockedRand) Duration(upTo time.Duration) time.Duration {
	if upTo <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.rng.Int64N(int64(upTo) + 1))
}

func run(ctx context.Context, out, errOut io.Writer, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(opts.verbose, errOut)
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	if opts.trace {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(out),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := trace.NewTracerProvider(
			trace.WithSampler(trace.AlwaysSample()),
			trace.WithBatcher(exporter),
		)
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		defer func() {
			_ = tp.Shutdown(context.Background())
			otel.SetTracerProvider(prev)
		}()
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	// Delays are drawn from a shared generator. Each producer makes its
	// items from its own, so that what it makes depends only on the seed.
	rng := &lockedRand{rng: rand.New(rand.NewPCG(opts.seed, 0))}
	counts := make([]int, max(0, opts.producers))
	itemRngs := make([]*rand.Rand, len(counts))
	for i := range counts {
		counts[i] = rng.IntN(max(0, opts.maxItems) + 1)
		itemRngs[i] = rand.New(rand.NewPCG(opts.seed, uint64(i)+1))
		logger.Debug("planned producer", zap.Int("producer", i), zap.Int("items", counts[i]))
	}

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	produce := func(ctx context.Context, producer, seq int) (string, error) {
		item := fmt.Sprintf("Element: %d", itemRngs[producer].IntN(51))
		printf("Producer %d made <%s>.\n", producer, item)
		return item, nil
	}
	consume := func(ctx context.Context, item pcq.Item[string]) error {
		latency := time.Since(item.Created)
		printf("Consumer got element <%s> from producer %d in %0.5f seconds.\n",
			item.Value, item.Producer, latency.Seconds())
		logger.Debug("consumed", zap.String("item", item.Value), zap.Duration("latency", latency))
		return nil
	}

	cfg := pcq.Config{
		Producers: opts.producers,
		Consumers: opts.consumers,
		Capacity:  opts.capacity,
		Items: func(producer int) int {
			return counts[producer]
		},
		ProduceDelay: func() time.Duration { return rng.Duration(opts.maxDelay) },
		ConsumeDelay: func() time.Duration { return rng.Duration(opts.maxDelay) },
		Logger:       logger,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	start := time.Now()
	report, err := pcq.Run(ctx, cfg,
		otpcq.InstrumentedProduce("produce", produce),
		otpcq.InstrumentedConsume("consume", consume))
	elapsed := time.Since(start)

	printf("Produced %d, consumed %d, failed %d, peak in flight %d.\n",
		report.Produced, report.Consumed, report.Failed, report.PeakInFlight)
	printf("Program completed in %0.5f seconds.\n", elapsed.Seconds())
	return err
}
