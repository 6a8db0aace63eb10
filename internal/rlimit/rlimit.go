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

// Package rlimit queries and best-effort raises the process's open-file
// descriptor limit. cmd/tinyhttpd sizes the reactor's accept-refusal
// budget off the soft limit this package reports rather than a
// compiled-in constant.
package rlimit

import (
	"math"

	"golang.org/x/sys/unix"
)

// Raise queries RLIMIT_NOFILE and, if want is greater than the current
// soft limit, attempts to increase it. want <= 0 performs a pure query.
// Raising the hard limit above its current value requires privileges the
// process may not have; Setrlimit's error is returned unchanged so the
// caller can log and continue at whatever limit already held.
func Raise(want int) (current int, max int, err error) {
	var lim unix.Rlimit
	if err = unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, 0, err
	}

	if want <= 0 || uint64(want) <= lim.Cur {
		current, max = clamp(lim.Cur, lim.Max)
		return current, max, nil
	}

	changed := false
	if uint64(want) > lim.Max {
		lim.Max = uint64(want)
		changed = true
	}
	if uint64(want) > lim.Cur {
		lim.Cur = uint64(want)
		changed = true
	}

	if !changed {
		c, m := clamp(lim.Cur, lim.Max)
		return c, m, nil
	}

	if err = unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		c, m := clamp(lim.Cur, lim.Max)
		return c, m, err
	}

	return Raise(0)
}

func clamp(cur, mx uint64) (int, int) {
	toInt := func(v uint64) int {
		if v > uint64(math.MaxInt) {
			return math.MaxInt
		}
		return int(v)
	}
	return toInt(cur), toInt(mx)
}
