// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package waitq

// A Waiter is a single registration in a [Queue]. Its notification channel
// has a buffer of one, which lets a waiter and its queue agree without a lock
// on whether a notification was delivered:
//
//   - [Queue.Notify] pops the waiter and fills the buffer. The waiter receives
//     from [Waiter.Done] and is no longer queued.
//   - The waiter gives up first and [Waiter.Close] fills its own buffer. A
//     later Notify finds the buffer full, drops the waiter, and moves on to
//     the next one.
//   - Notify fills the buffer but the waiter gives up without receiving.
//     Close finds the buffer full and calls Notify again so that the wakeup
//     is passed on rather than lost.
//
// The zero value never fires; [Waiter.Done] returns a nil channel and
// [Waiter.Close] panics. Waiters are designed to be passed by value.
type Waiter struct {
	q          *Queue
	notifyChan chan struct{}
}

// Done returns the channel on which the notification arrives.
func (w Waiter) Done() <-chan struct{} {
	return w.notifyChan
}

// Close withdraws the waiter. Must be called if the waiter stops listening
// without having received from Done.
func (w Waiter) Close() {
	select {
	case w.notifyChan <- struct{}{}:
		// Filled notifyChan so that if it is still in the queue, Notify knows
		// that this waiter is no longer listening and can pass the
		// notification to another.
	default:
		// notifyChan was full, meaning that this waiter was notified but
		// didn't receive it. Pass the notification to another.
		w.q.Notify()
	}
}
