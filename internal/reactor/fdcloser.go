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

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// fdCloser adapts a raw file descriptor to io.Closer.
type fdCloser int

func (f fdCloser) Close() error {
	return unix.Close(int(f))
}

// fdGroup closes a fixed set of file descriptors together on shutdown,
// aggregating any close errors instead of stopping at the first one. The
// reactor's shutdown set is always the same four fds (listen socket,
// epoll instance, self-pipe read and write ends), so a plain slice is
// enough — there is no need to track or remove individual members once
// added.
type fdGroup []fdCloser

func newFDGroup(fds ...int) fdGroup {
	g := make(fdGroup, len(fds))
	for i, fd := range fds {
		g[i] = fdCloser(fd)
	}
	return g
}

func (g fdGroup) Close() error {
	var errs []error
	for _, c := range g {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
