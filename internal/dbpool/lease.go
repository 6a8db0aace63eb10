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

package dbpool

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Lease is a scoped-guard discipline: it acquires a handle on construction
// and releases it on every exit path. Close is idempotent so a deferred
// Close after an early explicit Close is safe.
type Lease struct {
	pool *Pool
	db   *gorm.DB
	once sync.Once
}

// NewLease blocks on p's semaphore until a handle is free, then returns a
// Lease wrapping it. Callers MUST defer Close() immediately.
func NewLease(ctx context.Context, p *Pool) *Lease {
	return &Lease{pool: p, db: p.acquire(ctx)}
}

// Closer is the minimal surface threadpool.Pool needs from a lease: close
// it on every exit path. *Lease satisfies this.
type Closer interface {
	Close()
}

// Leaser is implemented by Pool. Components that only need to acquire and
// release a handle (rather than the full *Pool type) can depend on this
// interface instead — which lets tests substitute a fake DB-free pool.
type Leaser interface {
	Lease(ctx context.Context) Closer
}

// Lease acquires a handle under a scoped guard and returns it as a Closer.
func (p *Pool) Lease(ctx context.Context) Closer {
	return NewLease(ctx, p)
}

// DB returns the leased handle. Valid only until Close.
func (l *Lease) DB() *gorm.DB { return l.db }

// Close releases the handle back to the pool. Safe to call multiple
// times and safe to defer.
func (l *Lease) Close() {
	l.once.Do(func() {
		l.pool.release(l.db)
	})
}
