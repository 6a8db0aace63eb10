package reactor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sabouaram/tinyhttpd/internal/config"
	"github.com/sabouaram/tinyhttpd/internal/dbpool"
	"github.com/sabouaram/tinyhttpd/internal/httpconn"
	"github.com/sabouaram/tinyhttpd/internal/threadpool"
)

// fakeLeaser satisfies dbpool.Leaser without a real database, mirroring
// threadpool's own test double since no request in these tests reaches
// the CGI login/register paths.
type fakeLeaser struct{}

type fakeCloser struct{}

func (fakeCloser) Close() {}

func (fakeLeaser) Lease(ctx context.Context) dbpool.Closer { return fakeCloser{} }

func writeDocRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "judge.html"), []byte("<html>judge</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

// startServer builds a Server on an ephemeral port and runs it on a
// background goroutine, returning the dial address and a stop function.
func startServer(t *testing.T, pool *threadpool.Pool, slot time.Duration, model config.ActorModel) (addr string, stop func()) {
	t.Helper()

	opt := Options{
		Port:       0,
		TrigMode:   config.TrigListenLTConnLT,
		ActorModel: model,
		MaxFD:      64,
		TimeSlot:   slot,
	}
	deps := httpconn.Deps{DocRoot: writeDocRoot(t)}

	srv, err := New(opt, deps, pool, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addr = fmt.Sprintf("127.0.0.1:%d", srv.Port())

	// Give the accept/epoll loop a moment to start servicing the listen fd.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = c.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stop = func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Log("reactor: Run did not exit promptly after cancel")
		}
	}
	return addr, stop
}

func doGet(t *testing.T, r *bufio.Reader, method string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, "/judge.html", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.ReadResponse(r, req)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func TestStaticGetIsServed(t *testing.T) {
	pool := threadpool.New(threadpool.Proactor, fakeLeaser{}, 2, 8)
	defer pool.Stop()

	addr, stop := startServer(t, pool, time.Second, config.ActorProactor)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := doGet(t, bufio.NewReader(conn), "GET")
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "<html>judge</html>" {
		t.Fatalf("body = %q", body)
	}
	if resp.Close {
		return
	}
	t.Fatal("expected Connection: close on a non-keep-alive request")
}

func TestMalformedRequestGetsBadRequest(t *testing.T) {
	pool := threadpool.New(threadpool.Proactor, fakeLeaser{}, 2, 8)
	defer pool.Stop()

	addr, stop := startServer(t, pool, time.Second, config.ActorProactor)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// LF without a preceding CR is malformed per the parser's rule.
	if _, err := conn.Write([]byte("GET /x HTTP/1.1\nHost: x\n\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := doGet(t, bufio.NewReader(conn), "GET")
	defer resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestKeepAliveServesSecondRequestOnSameConnection(t *testing.T) {
	pool := threadpool.New(threadpool.Proactor, fakeLeaser{}, 2, 8)
	defer pool.Stop()

	addr, stop := startServer(t, pool, time.Second, config.ActorProactor)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	req := "GET /judge.html HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n"

	for i := 0; i < 2; i++ {
		if _, err := conn.Write([]byte(req)); err != nil {
			t.Fatalf("write request %d: %v", i, err)
		}
		resp := doGet(t, r, "GET")
		if resp.StatusCode != 200 {
			t.Fatalf("request %d: status = %d, want 200", i, resp.StatusCode)
		}
		if _, err := io.ReadAll(resp.Body); err != nil {
			t.Fatalf("read body %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.Close {
			t.Fatalf("request %d: server marked connection close on a keep-alive request", i)
		}
	}
}

func TestIdleConnectionIsClosedAfterTimeout(t *testing.T) {
	pool := threadpool.New(threadpool.Proactor, fakeLeaser{}, 2, 8)
	defer pool.Stop()

	// A short tick so IdleTimeoutTicks*slot elapses well inside the test's
	// own deadline.
	addr, stop := startServer(t, pool, 150*time.Millisecond, config.ActorProactor)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	if err == nil {
		t.Fatal("expected idle connection to be closed by the server")
	}
}

func TestBackPressureReturnsInternalServerBusy(t *testing.T) {
	// One worker, one queue slot; pin the worker mid-task on the first
	// connection and fill the queue slot with the second, so the third
	// connection's Submit is rejected and the reactor answers it directly
	// with 500 rather than enqueueing.
	release := make(chan struct{})
	pool := threadpool.New(threadpool.Reactor, blockingLeaser{release: release}, 1, 1)
	defer pool.Stop()
	defer close(release)

	addr, stop := startServer(t, pool, time.Second, config.ActorReactor)
	defer stop()

	conn1, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial 1: %v", err)
	}
	defer conn1.Close()
	if _, err := conn1.Write([]byte("GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write 1: %v", err)
	}

	// Give the reactor time to accept conn1, submit its Read task, and for
	// the single worker to pop it and block inside Lease.
	time.Sleep(300 * time.Millisecond)

	conn2, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial 2: %v", err)
	}
	defer conn2.Close()
	if _, err := conn2.Write([]byte("GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	conn3, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial 3: %v", err)
	}
	defer conn3.Close()
	if _, err := conn3.Write([]byte("GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write 3: %v", err)
	}

	_ = conn3.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := doGet(t, bufio.NewReader(conn3), "GET")
	defer resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "Internal server busy.\n" {
		t.Fatalf("body = %q", body)
	}
}

// TestAcceptOverMaxFDReturnsInternalServerBusy exercises the accept-time
// refusal path: with MaxFD pinned to 1 and one connection already
// registered, the next accepted connection must be answered with 500
// rather than silently closed.
func TestAcceptOverMaxFDReturnsInternalServerBusy(t *testing.T) {
	pool := threadpool.New(threadpool.Proactor, fakeLeaser{}, 2, 8)
	defer pool.Stop()

	opt := Options{
		Port:       0,
		TrigMode:   config.TrigListenLTConnLT,
		ActorModel: config.ActorProactor,
		MaxFD:      1,
		TimeSlot:   time.Second,
	}
	deps := httpconn.Deps{DocRoot: writeDocRoot(t)}

	srv, err := New(opt, deps, pool, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	defer func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Log("reactor: Run did not exit promptly after cancel")
		}
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", srv.Port())

	deadline := time.Now().Add(2 * time.Second)
	var conn1 net.Conn
	for time.Now().Before(deadline) {
		conn1, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if conn1 == nil {
		t.Fatalf("dial 1: %v", err)
	}
	defer conn1.Close()

	// Give the reactor time to accept and register conn1, filling the
	// MaxFD=1 budget, before conn2 arrives.
	time.Sleep(200 * time.Millisecond)

	conn2, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial 2: %v", err)
	}
	defer conn2.Close()

	_ = conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := doGet(t, bufio.NewReader(conn2), "GET")
	defer resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "Internal server busy.\n" {
		t.Fatalf("body = %q", body)
	}
}

// blockingLeaser never returns from Lease until release is closed, used to
// pin a worker mid-task so queue back-pressure can be observed
// deterministically (mirrors threadpool's own test double).
type blockingLeaser struct{ release chan struct{} }

func (b blockingLeaser) Lease(ctx context.Context) dbpool.Closer {
	<-b.release
	return fakeCloser{}
}
