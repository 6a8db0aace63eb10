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
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// selfPipe is the reactor's signal self-pipe: SIGALRM and SIGTERM are
// trapped by Go's ordinary signal.Notify and re-encoded as one byte (the
// signal number) written into a non-blocking pipe whose read end is
// registered with epoll — this is what lets signal delivery and socket
// readiness share a single epoll_wait loop instead of needing a second
// polling mechanism.
type selfPipe struct {
	readFD  int
	writeFD int

	sigCh chan os.Signal
	done  chan struct{}
}

func newSelfPipe() (*selfPipe, error) {
	fds, err := unix.Pipe2(nil, unix.O_NONBLOCK|unix.O_CLOEXEC)
	if err != nil {
		return nil, err
	}

	sp := &selfPipe{
		readFD:  fds[0],
		writeFD: fds[1],
		sigCh:   make(chan os.Signal, 8),
		done:    make(chan struct{}),
	}

	signal.Notify(sp.sigCh, syscall.SIGALRM, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)

	go sp.forward()

	return sp, nil
}

func (sp *selfPipe) forward() {
	for {
		select {
		case <-sp.done:
			return
		case s := <-sp.sigCh:
			var b byte
			switch s {
			case syscall.SIGALRM:
				b = byte(syscall.SIGALRM)
			case syscall.SIGTERM:
				b = byte(syscall.SIGTERM)
			default:
				continue
			}
			_, _ = unix.Write(sp.writeFD, []byte{b})
		}
	}
}

// drain reads every pending byte off the pipe's read end and reports
// whether a tick (SIGALRM) and/or a stop request (SIGTERM) was seen.
func (sp *selfPipe) drain() (sawAlarm, sawTerm bool) {
	var buf [64]byte
	for {
		n, err := unix.Read(sp.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
		for _, b := range buf[:n] {
			switch b {
			case byte(syscall.SIGALRM):
				sawAlarm = true
			case byte(syscall.SIGTERM):
				sawTerm = true
			}
		}
		if n < len(buf) {
			return
		}
	}
}

func (sp *selfPipe) close() {
	close(sp.done)
	signal.Stop(sp.sigCh)
	_ = unix.Close(sp.writeFD)
	_ = unix.Close(sp.readFD)
}
