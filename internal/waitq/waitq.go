// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package waitq provides a FIFO queue of cancellable waiters. It is used to
// park goroutines that are waiting for a condition guarded by some other lock
// and to wake them one at a time, in arrival order, as the condition changes.
package waitq

import (
	"sync"

	"github.com/gammazero/deque"
)

// Queue is a FIFO queue of waiters. The zero value is ready to use.
type Queue struct {
	mu    sync.Mutex
	inner deque.Deque[Waiter]
}

// Add registers a new waiter at the back of the queue. Never blocks.
func (q *Queue) Add() Waiter {
	w := Waiter{
		q:          q,
		notifyChan: make(chan struct{}, 1),
	}
	q.mu.Lock()
	q.inner.PushBack(w)
	q.mu.Unlock()
	return w
}

// Notify signals the waiter at the front of the queue (if any). Waiters that
// have already been closed are skipped.
func (q *Queue) Notify() {
	for {
		w, ok := q.popFront()
		if !ok {
			return
		}

		select {
		case w.notifyChan <- struct{}{}:
			// The notification was sent.
			return
		default:
			// The channel was full, meaning that the waiter was closed. Loop
			// and try the next one.
		}
	}
}

// Len returns the number of registered waiters, including closed waiters that
// have not yet been skipped by Notify.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inner.Len()
}

func (q *Queue) popFront() (Waiter, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inner.Len() == 0 {
		return Waiter{}, false
	}
	return q.inner.PopFront(), true
}
