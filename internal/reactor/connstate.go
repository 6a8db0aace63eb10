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
	"github.com/sabouaram/tinyhttpd/internal/httpconn"
	"github.com/sabouaram/tinyhttpd/internal/timer"
)

// connState is one accepted socket's bookkeeping: the HTTP state machine,
// its timer-wheel node, and which epoll readiness direction the reactor
// is currently waiting on. The timer node carries an opaque back-pointer
// to this struct and is owned exclusively by the reactor's timer.List —
// connState never touches list linkage directly.
type connState struct {
	fd   int
	peer string
	conn *httpconn.Connection

	timerNode *timer.Node

	// waitingWrite is true once the reactor has armed EPOLLOUT for this
	// fd (a response is ready to send); false while waiting on EPOLLIN.
	waitingWrite bool
}
