// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otpcq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/petenewcomb/pcq-go"
	"github.com/petenewcomb/pcq-go/otpcq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeGlobalLogs(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(undo)
	return logs
}

func TestLoggedProduceAndConsume(t *testing.T) {
	chk := require.New(t)
	logs := observeGlobalLogs(t)
	boom := errors.New("boom")

	produce := otpcq.LoggedProduce("gen",
		func(ctx context.Context, producer, seq int) (int, error) {
			if seq == 2 {
				return 0, boom
			}
			return seq, nil
		})
	consume := otpcq.LoggedConsume("sink",
		func(ctx context.Context, item pcq.Item[int]) error {
			return nil
		})

	report, err := pcq.Run(context.Background(), pcq.Config{
		Producers: 1,
		Consumers: 1,
		Capacity:  1,
		Items:     pcq.FixedCount(5),
	}, produce, consume)
	chk.ErrorIs(err, boom)
	chk.Equal(2, report.Produced)
	chk.Equal(2, report.Consumed)

	chk.Equal(3, logs.FilterMessage("Starting produce").Len())
	chk.Equal(2, logs.FilterMessage("Produce completed").Len())
	chk.Equal(2, logs.FilterMessage("Consume completed").Len())

	failed := logs.FilterMessage("Produce failed").All()
	chk.Len(failed, 1)
	fields := failed[0].ContextMap()
	chk.Equal("gen", fields["operation"])
	chk.EqualValues(2, fields["seq"])
	chk.Equal("boom", fields["error"])
}

func TestInstrumentedRoundTrip(t *testing.T) {
	chk := require.New(t)
	logs := observeGlobalLogs(t)
	sr := installRecorder(t)

	var sum int
	produce := otpcq.InstrumentedProduce("gen",
		func(ctx context.Context, producer, seq int) (int, error) {
			return seq + 1, nil
		})
	consume := otpcq.InstrumentedConsume("sink",
		func(ctx context.Context, item pcq.Item[int]) error {
			sum += item.Value
			return nil
		})

	report, err := pcq.Run(context.Background(), pcq.Config{
		Producers: 1,
		Consumers: 1,
		Capacity:  2,
		Items:     pcq.FixedCount(4),
	}, produce, consume)
	chk.NoError(err)
	chk.True(report.OK())
	chk.Equal(10, sum)

	chk.Equal(4, logs.FilterMessage("Consume completed").Len())
	chk.Len(spansNamed(sr.Ended(), "gen"), 4)
	chk.Len(spansNamed(sr.Ended(), "sink"), 4)
}
