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

// Package threadpool is the bounded worker pool: N workers draining a
// fixed-capacity task queue, aware of which of the two concurrency models
// (Proactor/Reactor) the server is running under.
//
// A busy-wait completion handshake is replaced here with a one-shot
// completion channel per task, since Go has cheap channels where a
// C-style implementation would reach for a shared flag. Ordering between
// dispatch and connection re-arm is preserved: the reactor does not
// re-register a connection's fd until it has received that task's
// Outcome.
package threadpool

import (
	"context"
	"sync"
	"time"

	"github.com/sabouaram/tinyhttpd/internal/concurrency"
	"github.com/sabouaram/tinyhttpd/internal/dbpool"
	"github.com/sabouaram/tinyhttpd/internal/httpconn"
)

// ActorModel selects which of the two concurrency models the pool runs
// under.
type ActorModel int

const (
	Proactor ActorModel = iota
	Reactor
)

// Task is one unit of dispatch: a connection plus, in Reactor mode, which
// phase (read or write) the worker should perform. Done carries the
// completion signal back to the reactor goroutine.
type Task struct {
	Conn  *httpconn.Connection
	Phase httpconn.Phase

	// Done is buffered (capacity 1) and written to exactly once by the
	// worker that processes this task.
	Done chan Outcome
}

// Outcome is what a worker reports back through Task.Done: whether the
// connection should be closed, and, once a request has been parsed, its
// Result. The worker has already called ProcessWrite for that Result, so
// the reactor only needs to arm EPOLLOUT and run the Write phase.
type Outcome struct {
	Close  bool
	Result httpconn.Result
}

// Pool is the bounded worker pool.
type Pool struct {
	model ActorModel
	dbp   dbpool.Leaser
	queue *concurrency.Queue[Task]

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// New spawns numWorkers goroutines draining a queue of capacity maxQueue.
func New(model ActorModel, dbp dbpool.Leaser, numWorkers, maxQueue int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if maxQueue <= 0 {
		maxQueue = 1
	}

	p := &Pool{
		model: model,
		dbp:   dbp,
		queue: concurrency.NewQueue[Task](maxQueue),
		stop:  make(chan struct{}),
	}

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit enqueues a Reactor-mode task (a connection plus the phase to
// run). It returns false — nonblocking back-pressure — once the queue is
// at capacity.
func (p *Pool) Submit(conn *httpconn.Connection, phase httpconn.Phase) (*Task, bool) {
	t := Task{Conn: conn, Phase: phase, Done: make(chan Outcome, 1)}
	if !p.queue.Push(t) {
		return nil, false
	}
	return &t, true
}

// SubmitProactor enqueues a task whose I/O has already been performed by
// the reactor thread, Proactor mode's handoff after a completed read.
func (p *Pool) SubmitProactor(conn *httpconn.Connection) (*Task, bool) {
	t := Task{Conn: conn, Phase: httpconn.PhaseRead, Done: make(chan Outcome, 1)}
	if !p.queue.Push(t) {
		return nil, false
	}
	return &t, true
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			if p.queue.Empty() {
				return
			}
		default:
		}

		task, ok := p.queue.PopTimed(100 * time.Millisecond) // tolerates stop polling
		if !ok {
			select {
			case <-p.stop:
				if p.queue.Empty() {
					return
				}
			default:
			}
			continue
		}

		p.run(task)
	}
}

func (p *Pool) run(t Task) {
	switch p.model {
	case Reactor:
		p.runReactor(t)
	default:
		p.runProactor(t)
	}
}

func (p *Pool) runReactor(t Task) {
	switch t.Phase {
	case httpconn.PhaseRead:
		switch t.Conn.ReadOnce(false) {
		case httpconn.ReadClosed, httpconn.ReadError:
			t.Done <- Outcome{Close: true}
			return
		}

		result := t.Conn.Feed()
		if result == httpconn.NoRequest {
			t.Done <- Outcome{Close: false}
			return
		}

		if result == httpconn.GetRequest {
			lease := p.dbp.Lease(context.Background())
			result = t.Conn.DoRequest(context.Background())
			lease.Close()
		}

		t.Conn.ProcessWrite(result)
		t.Done <- Outcome{Close: false, Result: result}

	case httpconn.PhaseWrite:
		switch t.Conn.Write() {
		case httpconn.WriteFailed:
			t.Done <- Outcome{Close: true}
		default:
			t.Done <- Outcome{Close: false}
		}
	}
}

// runProactor assumes the reactor thread already filled the connection's
// read buffer; the worker only leases a DB handle and runs the request
// dispatch + response build.
func (p *Pool) runProactor(t Task) {
	result := t.Conn.Feed()
	if result == httpconn.NoRequest {
		t.Done <- Outcome{Close: false}
		return
	}

	if result == httpconn.GetRequest {
		lease := p.dbp.Lease(context.Background())
		result = t.Conn.DoRequest(context.Background())
		lease.Close()
	}

	t.Conn.ProcessWrite(result)
	t.Done <- Outcome{Close: false, Result: result}
}

// Stop requests every worker to exit once the queue drains, then blocks
// until they have. Safe to call more than once.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// QueueDepth reports the current number of pending tasks, for the
// supplemental metrics gauge.
func (p *Pool) QueueDepth() int { return p.queue.Size() }
