// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package sim

import (
	"time"

	"github.com/stretchr/testify/require"
)

type Result struct {
	Produced     int
	Consumed     int
	Failed       int
	Errors       int
	PeakInFlight int
	Elapsed      time.Duration
}

type ResultRange struct {
	Trials int
	// Counts must agree across every merged result.
	Produced int
	Consumed int
	Failed   int
	Errors   int

	MinPeakInFlight int
	MaxPeakInFlight int
	MinElapsed      time.Duration
	MaxElapsed      time.Duration
}

func (rr *ResultRange) MergeResult(t require.TestingT, r *Result) {
	chk := require.New(t)
	chk.NotNil(rr)
	chk.NotNil(r)
	if rr.Trials == 0 {
		rr.Produced = r.Produced
		rr.Consumed = r.Consumed
		rr.Failed = r.Failed
		rr.Errors = r.Errors
		rr.MinPeakInFlight = r.PeakInFlight
		rr.MaxPeakInFlight = r.PeakInFlight
		rr.MinElapsed = r.Elapsed
		rr.MaxElapsed = r.Elapsed
	} else {
		chk.Equal(rr.Produced, r.Produced)
		chk.Equal(rr.Consumed, r.Consumed)
		chk.Equal(rr.Failed, r.Failed)
		chk.Equal(rr.Errors, r.Errors)
		rr.MinPeakInFlight = min(rr.MinPeakInFlight, r.PeakInFlight)
		rr.MaxPeakInFlight = max(rr.MaxPeakInFlight, r.PeakInFlight)
		rr.MinElapsed = min(rr.MinElapsed, r.Elapsed)
		rr.MaxElapsed = max(rr.MaxElapsed, r.Elapsed)
	}
	rr.Trials++
}

func (rr *ResultRange) MergeRange(t require.TestingT, o *ResultRange) {
	chk := require.New(t)
	chk.NotNil(o)
	if o.Trials == 0 {
		return
	}
	if rr.Trials == 0 {
		*rr = *o
		return
	}
	chk.Equal(rr.Produced, o.Produced)
	chk.Equal(rr.Consumed, o.Consumed)
	chk.Equal(rr.Failed, o.Failed)
	chk.Equal(rr.Errors, o.Errors)
	rr.MinPeakInFlight = min(rr.MinPeakInFlight, o.MinPeakInFlight)
	rr.MaxPeakInFlight = max(rr.MaxPeakInFlight, o.MaxPeakInFlight)
	rr.MinElapsed = min(rr.MinElapsed, o.MinElapsed)
	rr.MaxElapsed = max(rr.MaxElapsed, o.MaxElapsed)
	rr.Trials += o.Trials
}
