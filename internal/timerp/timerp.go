// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package timerp pools timers for the short, frequent, cancellable delays
// used to simulate work.
package timerp

import (
	"context"
	"sync"
	"time"
)

// This implementation relies on [Go 1.23+ behavior] and is therefore not much
// more than a type-safe wrapper over [sync.Pool]: a stopped or fired timer can
// be reset without draining its channel.
//
// [Go 1.23+ behavior]: https://pkg.go.dev/time#NewTimer

var pool = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		t.Stop()
		return t
	},
}

func Get() *time.Timer {
	return pool.Get().(*time.Timer)
}

func Put(t *time.Timer) {
	t.Stop()
	pool.Put(t)
}

// Sleep pauses for d or until ctx ends, whichever comes first. Returns
// ctx.Err() if the sleep was cut short. Non-positive durations return
// immediately without consulting ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := Get()
	defer Put(t)
	t.Reset(d)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
