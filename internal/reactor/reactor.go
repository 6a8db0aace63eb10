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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/tinyhttpd/internal/config"
	"github.com/sabouaram/tinyhttpd/internal/httpconn"
	"github.com/sabouaram/tinyhttpd/internal/logger"
	"github.com/sabouaram/tinyhttpd/internal/metrics"
	"github.com/sabouaram/tinyhttpd/internal/threadpool"
	"github.com/sabouaram/tinyhttpd/internal/timer"
)

// Server is one listening epoll reactor: a listen socket, an epoll
// instance, a self-pipe bridging SIGALRM/SIGTERM into the same readiness
// loop, and a timer.List reaping idle connections on every alarm tick.
type Server struct {
	opt  Options
	deps httpconn.Deps
	pool *threadpool.Pool
	met  *metrics.Collector
	log  logger.Logger

	listenFD int
	epollFD  int
	sp       *selfPipe

	closers fdGroup

	timers *timer.List

	mu    sync.Mutex
	conns map[int]*connState

	nextTick time.Time
}

// New creates the listen socket and epoll instance but does not yet start
// accepting — call Run to enter the event loop. met/log may be nil.
func New(opt Options, deps httpconn.Deps, pool *threadpool.Pool, met *metrics.Collector, log logger.Logger) (*Server, error) {
	listenFD, err := newListener(opt.Port, opt.TrigMode.ListenEdgeTriggered(), opt.OptLinger)
	if err != nil {
		return nil, err
	}

	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		_ = unix.Close(listenFD)
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	sp, err := newSelfPipe()
	if err != nil {
		_ = unix.Close(listenFD)
		_ = unix.Close(epollFD)
		return nil, err
	}

	s := &Server{
		opt:      opt,
		deps:     deps,
		pool:     pool,
		met:      met,
		log:      log,
		listenFD: listenFD,
		epollFD:  epollFD,
		sp:       sp,
		closers:  newFDGroup(listenFD, epollFD, sp.readFD, sp.writeFD),
		timers:   timer.New(),
		conns:    make(map[int]*connState),
	}

	if err := s.epollAdd(listenFD, unix.EPOLLIN, false); err != nil {
		_ = s.closers.Close()
		return nil, err
	}
	if err := s.epollAdd(sp.readFD, unix.EPOLLIN, false); err != nil {
		_ = s.closers.Close()
		return nil, err
	}

	return s, nil
}

func (s *Server) epollAdd(fd int, events uint32, oneshot bool) error {
	if oneshot {
		events |= unix.EPOLLONESHOT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(s.epollFD, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (s *Server) epollMod(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events | unix.EPOLLONESHOT, Fd: int32(fd)}
	return unix.EpollCtl(s.epollFD, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (s *Server) epollDel(fd int) {
	_ = unix.EpollCtl(s.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
}

// Port returns the listen socket's bound TCP port — the same value given
// in Options.Port, unless that was 0, in which case this reports the port
// the kernel actually assigned.
func (s *Server) Port() int {
	p, err := boundPort(s.listenFD)
	if err != nil {
		return s.opt.Port
	}
	return p
}

// Run arms the alarm tick and enters the reactor's readiness loop; it
// blocks until ctx is cancelled or a SIGTERM is observed on the self-pipe,
// then releases every held fd. In-flight worker completions are not
// waited for.
func (s *Server) Run(ctx context.Context) error {
	defer s.closers.Close()
	defer s.sp.close()

	slot := s.opt.timeSlot()
	if _, err := unix.Alarm(uint(slot.Seconds())); err != nil {
		return fmt.Errorf("reactor: alarm: %w", err)
	}
	s.nextTick = time.Now().Add(slot)

	events := make(chan []unix.EpollEvent, 4)
	pollErr := make(chan error, 1)
	go s.pollLoop(ctx, events, pollErr)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-pollErr:
			return err

		case batch := <-events:
			if stop := s.handleBatch(ctx, batch); stop {
				return nil
			}
		}
	}
}

// pollLoop runs epoll_wait on a dedicated goroutine so Run's select can
// also observe ctx.Done() without epoll_wait itself blocking shutdown —
// a single-threaded event loop becomes two goroutines here since Go has
// no EINTR-driven wakeup on context cancellation.
func (s *Server) pollLoop(ctx context.Context, out chan<- []unix.EpollEvent, errc chan<- error) {
	buf := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := unix.EpollWait(s.epollFD, buf, int(s.opt.timeSlot().Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			select {
			case errc <- fmt.Errorf("reactor: epoll_wait: %w", err):
			case <-ctx.Done():
			}
			return
		}

		// A timeout with nothing ready still forwards an empty batch, so
		// handleBatch's nextTick check reaps idle connections even when no
		// SIGALRM arrives (a TimeSlot under one second arms no alarm).
		batch := append([]unix.EpollEvent(nil), buf[:n]...)
		select {
		case out <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// handleBatch dispatches one epoll batch and reports whether a SIGTERM was
// seen on the self-pipe, in which case Run leaves its loop.
func (s *Server) handleBatch(ctx context.Context, batch []unix.EpollEvent) (stop bool) {
	tick := false

	for _, ev := range batch {
		fd := int(ev.Fd)
		switch {
		case fd == s.listenFD:
			s.acceptLoop(ctx)
		case fd == s.sp.readFD:
			sawAlarm, sawTerm := s.sp.drain()
			tick = tick || sawAlarm
			if sawTerm {
				return true
			}
		default:
			s.handleConnEvent(ctx, fd, ev.Events)
		}
	}

	if tick || time.Now().After(s.nextTick) {
		s.onTick()
	}
	return false
}

// acceptLoop accepts every connection currently queued on the listen
// socket. In edge-triggered listen mode this must drain to EAGAIN; in
// level-triggered mode a single Accept4 still suffices since epoll will
// signal again, but looping is harmless and keeps both modes uniform.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		fd, sa, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			return
		}

		s.mu.Lock()
		over := len(s.conns) >= s.opt.maxFD()
		s.mu.Unlock()

		if over {
			// Refuse over the max-fd budget rather than accept and
			// immediately starve an existing connection.
			_, _ = unix.Write(fd, httpconn.ErrorResponse(httpconn.InternalError))
			_ = unix.Close(fd)
			continue
		}

		peer := peerString(sa)
		if s.met != nil {
			s.met.IncAccepted()
		}

		var connID string
		if s.log != nil {
			connID = s.log.NewConnID()
		}

		conn := httpconn.New(fd, peer, connID, s.deps)

		cs := &connState{fd: fd, peer: peer, conn: conn}
		node := &timer.Node{
			Expire:   time.Now().Add(time.Duration(IdleTimeoutTicks) * s.opt.timeSlot()).Unix(),
			Conn:     cs,
			OnExpire: s.onIdleExpire,
		}
		cs.timerNode = node

		s.mu.Lock()
		s.conns[fd] = cs
		s.timers.Add(node)
		active := len(s.conns)
		s.mu.Unlock()

		if s.met != nil {
			s.met.SetActive(active)
		}

		if err := s.epollAdd(fd, unix.EPOLLIN, true); err != nil {
			s.closeConn(cs)
			continue
		}
	}
}

func (s *Server) handleConnEvent(ctx context.Context, fd int, events uint32) {
	s.mu.Lock()
	cs, ok := s.conns[fd]
	s.mu.Unlock()
	if !ok {
		return
	}

	s.touch(cs)

	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		s.closeConn(cs)
		return
	}

	if cs.waitingWrite {
		s.onWritable(ctx, cs)
		return
	}
	s.onReadable(ctx, cs)
}

// onReadable dispatches the Read phase under whichever concurrency model
// this Server was configured with. Proactor mode performs the socket read
// here on the reactor thread before handing the connection to a worker
// (runProactor never touches the fd); Reactor mode hands the fd straight
// to a worker, which performs the read itself.
func (s *Server) onReadable(ctx context.Context, cs *connState) {
	if s.opt.model() == threadpool.Reactor {
		task, ok := s.pool.Submit(cs.conn, httpconn.PhaseRead)
		if !ok {
			s.rejectBusy(cs)
			return
		}
		go s.awaitReadCompletion(ctx, cs, task)
		return
	}

	switch cs.conn.ReadOnce(s.opt.TrigMode.ConnEdgeTriggered()) {
	case httpconn.ReadClosed, httpconn.ReadError:
		s.closeConn(cs)
		return
	}

	task, ok := s.pool.SubmitProactor(cs.conn)
	if !ok {
		s.rejectBusy(cs)
		return
	}
	go s.awaitReadCompletion(ctx, cs, task)
}

func (s *Server) awaitReadCompletion(ctx context.Context, cs *connState, task *threadpool.Task) {
	select {
	case out := <-task.Done:
		s.onReadDone(cs, out)
	case <-ctx.Done():
	}
}

// onReadDone runs on an await goroutine, never the poll goroutine; it only
// touches connState/epoll through the same syscalls Run's own goroutine
// uses, all of which are safe to call concurrently across distinct fds —
// the invariant that lets awaitReadCompletion fan out instead of queueing
// behind handleBatch.
func (s *Server) onReadDone(cs *connState, out threadpool.Outcome) {
	if out.Close {
		s.closeConn(cs)
		return
	}

	if out.Result == httpconn.NoRequest {
		if err := s.epollMod(cs.fd, unix.EPOLLIN); err != nil {
			s.closeConn(cs)
		}
		return
	}

	if s.log != nil {
		s.log.Access(cs.conn.ConnID, cs.peer, cs.conn.Method().String(), cs.conn.URL(), statusCodeFor(out.Result), 0, 0)
	}
	if s.met != nil {
		s.met.ObserveRequest(cs.conn.Method().String(), statusCodeFor(out.Result))
	}

	cs.waitingWrite = true
	if err := s.epollMod(cs.fd, unix.EPOLLOUT); err != nil {
		s.closeConn(cs)
	}
}

// onWritable dispatches the Write phase. Proactor mode writes on the
// reactor thread directly (runProactor's workers never call Write);
// Reactor mode submits a Write task to a worker.
func (s *Server) onWritable(ctx context.Context, cs *connState) {
	if s.opt.model() == threadpool.Reactor {
		task, ok := s.pool.Submit(cs.conn, httpconn.PhaseWrite)
		if !ok {
			s.rejectBusy(cs)
			return
		}
		go s.awaitWriteCompletion(ctx, cs, task)
		return
	}

	switch cs.conn.Write() {
	case httpconn.WriteFailed:
		s.closeConn(cs)
	case httpconn.WritePending:
		if err := s.epollMod(cs.fd, unix.EPOLLOUT); err != nil {
			s.closeConn(cs)
		}
	default:
		s.onWriteDone(cs)
	}
}

func (s *Server) awaitWriteCompletion(ctx context.Context, cs *connState, task *threadpool.Task) {
	select {
	case out := <-task.Done:
		if out.Close {
			s.closeConn(cs)
			return
		}
		s.onWriteDone(cs)
	case <-ctx.Done():
	}
}

// onWriteDone completes one request/response cycle: keep-alive
// connections are reset and rearmed for their next request, everything
// else is closed.
func (s *Server) onWriteDone(cs *connState) {
	if !cs.conn.KeepAlive() {
		s.closeConn(cs)
		return
	}

	cs.conn.ResetForKeepAlive()
	cs.waitingWrite = false
	s.touch(cs)

	if err := s.epollMod(cs.fd, unix.EPOLLIN); err != nil {
		s.closeConn(cs)
	}
}

// rejectBusy is the back-pressure path for a full worker queue: the
// reactor writes the standard internal-error response directly (bypassing
// the pool entirely) and closes the connection rather than blocking the
// event loop on Submit.
func (s *Server) rejectBusy(cs *connState) {
	_, _ = unix.Write(cs.fd, httpconn.ErrorResponse(httpconn.InternalError))
	s.closeConn(cs)
}

func (s *Server) onTick() {
	now := time.Now().Unix()

	s.mu.Lock()
	s.timers.Tick(now)
	s.nextTick = time.Now().Add(s.opt.timeSlot())
	s.mu.Unlock()

	if _, err := unix.Alarm(uint(s.opt.timeSlot().Seconds())); err != nil && s.log != nil {
		s.log.Warning("reactor: re-arm alarm failed", logger.Fields{"err": err.Error()})
	}
}

// onIdleExpire is the timer.Node callback invoked by List.Tick once a
// connection's idle budget (IdleTimeoutTicks * TimeSlot) has elapsed with
// no activity. The node has already been unlinked by Tick before this
// runs.
func (s *Server) onIdleExpire(n *timer.Node) {
	cs, ok := n.Conn.(*connState)
	if !ok {
		return
	}
	s.closeConnLocked(cs)
}

// touch bumps cs's expiry forward and asks the timer list to resort it
// in place via its Adjust semantics.
func (s *Server) touch(cs *connState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs.timerNode.Expire = time.Now().Add(time.Duration(IdleTimeoutTicks) * s.opt.timeSlot()).Unix()
	s.timers.Adjust(cs.timerNode)
}

func (s *Server) closeConn(cs *connState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeConnLocked(cs)
}

// closeConnLocked must be called with s.mu held; onIdleExpire runs from
// inside Tick, which itself runs with s.mu held via onTick, so this path
// never reacquires the lock.
func (s *Server) closeConnLocked(cs *connState) {
	if _, ok := s.conns[cs.fd]; !ok {
		return
	}
	delete(s.conns, cs.fd)
	s.timers.Del(cs.timerNode)
	s.epollDel(cs.fd)
	_ = cs.conn.Close()
	_ = unix.Close(cs.fd)

	if s.met != nil {
		s.met.SetActive(len(s.conns))
	}
}

// model translates Options.ActorModel into the threadpool package's own
// enum. The caller is responsible for constructing the threadpool.Pool
// passed to New with the same config.Settings.ActorModel value
// (cmd/tinyhttpd wires both from one Settings), so Server and Pool never
// disagree about which branch owns the socket read/write.
func (o Options) model() threadpool.ActorModel {
	if o.ActorModel == config.ActorReactor {
		return threadpool.Reactor
	}
	return threadpool.Proactor
}
