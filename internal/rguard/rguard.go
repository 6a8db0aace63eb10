/*
 * MIT License
 *
 * Copyright (c) 2021-2025 Nicolas JUHEL
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

// Package rguard is a single-slot idempotent, atomic-state resource guard,
// built on an Add/Close closer pattern reduced to one slot. It
// holds exactly one mmap.MMap region for one in-flight FILE_REQUEST
// response, so that any early-close path — a write error, a keep-alive
// reset, a forced connection close — can never leak a mapping.
package rguard

import (
	"sync/atomic"

	"github.com/xujiajun/mmap-go"
)

// Guard holds at most one mmap region. Add replaces any previously held
// region (closing it first); Close unmaps and clears the slot and is safe
// to call any number of times.
type Guard struct {
	closed atomic.Bool
	region mmap.MMap
}

// Add stores m, taking ownership of it. Any region already held is
// unmapped first — a Guard only ever protects the single mapping backing
// the response currently being built.
func (g *Guard) Add(m mmap.MMap) {
	if g.closed.Load() {
		_ = m.Unmap()
		return
	}
	if g.region != nil {
		_ = g.region.Unmap()
	}
	g.region = m
}

// Region returns the currently held mapping, or nil if none is held.
func (g *Guard) Region() mmap.MMap {
	return g.region
}

// Close unmaps the held region, if any, and marks the guard closed.
// Idempotent.
func (g *Guard) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	if g.region == nil {
		return nil
	}
	m := g.region
	g.region = nil
	return m.Unmap()
}

// Reset reopens a previously closed guard for reuse on a keep-alive
// connection, matching Connection.resetParser()'s reset-to-RequestLine
// lifecycle.
func (g *Guard) Reset() {
	g.closed.Store(false)
	g.region = nil
}
