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

// Package concurrency holds two small synchronization primitives: a
// counting semaphore and a bounded blocking queue. Both are thin wrappers
// kept deliberately small, since every other component (the DB pool and
// the thread pool) composes them rather than reimplementing wait/notify
// logic of its own.
package concurrency

import (
	"context"
	"errors"
	"fmt"

	xsemaphore "golang.org/x/sync/semaphore"
)

// ErrNegativeCount is returned by NewSemaphore when asked to start with a
// negative permit count.
var ErrNegativeCount = errors.New("concurrency: semaphore count must be >= 0")

// Semaphore is a counting semaphore: Wait blocks until a permit is
// available then consumes it; Post releases one permit and wakes a single
// waiter. It is the capacity bound underneath the DB pool; the worker
// pool's back-pressure comes from Queue.Push, not from this type.
type Semaphore struct {
	w *xsemaphore.Weighted
}

// NewSemaphore constructs a semaphore initialized to count permits.
func NewSemaphore(count int) (*Semaphore, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeCount, count)
	}
	return &Semaphore{w: xsemaphore.NewWeighted(int64(count))}, nil
}

// Wait blocks until a permit is available, then consumes it.
func (s *Semaphore) Wait(ctx context.Context) error {
	return s.w.Acquire(ctx, 1)
}

// TryWait consumes a permit without blocking; it returns false if none is
// currently free.
func (s *Semaphore) TryWait() bool {
	return s.w.TryAcquire(1)
}

// Post releases one permit, waking a single waiter if any is blocked.
func (s *Semaphore) Post() {
	s.w.Release(1)
}
