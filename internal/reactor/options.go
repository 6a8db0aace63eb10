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

// Package reactor is the Linux-only I/O reactor and server loop: a
// listener, an epoll readiness loop, a self-pipe for signals, and a
// periodic alarm tick, dispatching accepted connections to a
// threadpool.Pool under either the Proactor or Reactor concurrency model.
//
// Cross-platform portability is out of scope — this is a design for a
// kernel-event-notification-based OS — so this package only builds on
// linux.
package reactor

import (
	"time"

	"github.com/sabouaram/tinyhttpd/internal/config"
)

// TimeSlot is the default alarm interval.
const TimeSlot = 5 * time.Second

// IdleTimeoutTicks is how many TimeSlot ticks of inactivity close a
// connection.
const IdleTimeoutTicks = 3

// Options configures one Server.
type Options struct {
	Port       int
	TrigMode   config.TrigMode
	ActorModel config.ActorModel
	OptLinger  bool

	// MaxFD bounds concurrently accepted connections, refusing new
	// accepts past this budget. Derived from RLIMIT_NOFILE (via
	// internal/rlimit) rather than a hardcoded constant; New falls back
	// to 1024 if MaxFD <= 0.
	MaxFD int

	TimeSlot time.Duration
}

func (o Options) timeSlot() time.Duration {
	if o.TimeSlot <= 0 {
		return TimeSlot
	}
	return o.TimeSlot
}

func (o Options) maxFD() int {
	if o.MaxFD <= 0 {
		return 1024
	}
	return o.MaxFD
}
