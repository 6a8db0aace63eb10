/*
 * MIT License
 *
 * Copyright (c) 2019-2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package concurrency

import (
	"sync"
	"time"
)

// Queue is a ring-buffer-backed bounded FIFO of capacity C > 0. Push
// returns false once Size reaches the capacity; Pop and PopTimed block
// until an element is available (PopTimed gives up after its deadline).
// This backs both the thread pool's task queue and the log sink's async
// drain queue.
//
// Waiters are woken through a size-1 "doorbell" channel rather than a
// sync.Cond, so PopTimed is a plain select against time.After with no
// extra bookkeeping goroutine: spurious wakeups are tolerated by
// re-checking the buffer under the lock before returning.
type Queue[T any] struct {
	mu sync.Mutex

	buf   []T
	head  int
	count int

	bell chan struct{}
}

// NewQueue constructs a Queue with the given capacity. Capacity <= 0 panics,
// since a zero-length ring buffer can never hold a single pending element.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("concurrency: queue capacity must be > 0")
	}
	return &Queue[T]{
		buf:  make([]T, capacity),
		bell: make(chan struct{}, 1),
	}
}

func (q *Queue[T]) ring() {
	select {
	case q.bell <- struct{}{}:
	default:
	}
}

// Push enqueues x, returning false if the queue is already full. On
// success it wakes one blocked popper.
func (q *Queue[T]) Push(x T) bool {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.mu.Unlock()
		return false
	}

	idx := (q.head + q.count) % len(q.buf)
	q.buf[idx] = x
	q.count++
	q.mu.Unlock()

	q.ring()
	return true
}

// Pop blocks until an element is available, then removes and returns it.
func (q *Queue[T]) Pop() T {
	for {
		q.mu.Lock()
		if q.count > 0 {
			v := q.popLocked()
			q.mu.Unlock()
			return v
		}
		q.mu.Unlock()
		<-q.bell
	}
}

// PopTimed blocks up to timeout for an element; ok is false if none
// arrived in time.
func (q *Queue[T]) PopTimed(timeout time.Duration) (val T, ok bool) {
	deadline := time.Now().Add(timeout)

	for {
		q.mu.Lock()
		if q.count > 0 {
			v := q.popLocked()
			q.mu.Unlock()
			return v, true
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false
		}

		select {
		case <-q.bell:
		case <-time.After(remaining):
			var zero T
			return zero, false
		}
	}
}

func (q *Queue[T]) popLocked() T {
	v := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v
}

// Size returns the current element count.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// MaxSize returns the queue's fixed capacity.
func (q *Queue[T]) MaxSize() int {
	return len(q.buf)
}

// Full reports whether the queue is at capacity.
func (q *Queue[T]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == len(q.buf)
}

// Empty reports whether the queue holds no elements.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == 0
}

// Clear discards all pending elements.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = 0
	q.count = 0
}
