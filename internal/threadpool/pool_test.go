package threadpool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/tinyhttpd/internal/dbpool"
	"github.com/sabouaram/tinyhttpd/internal/httpconn"
)

// fakeLeaser satisfies dbpool.Leaser without touching a real database.
// Every worker in these tests leases and releases a no-op handle.
type fakeLeaser struct{}

type fakeCloser struct{}

func (fakeCloser) Close() {}

func (fakeLeaser) Lease(ctx context.Context) dbpool.Closer { return fakeCloser{} }

// blockingLeaser never returns from Lease until release is closed, used to
// pin a worker mid-task so queue back-pressure can be observed
// deterministically.
type blockingLeaser struct{ release chan struct{} }

func (b blockingLeaser) Lease(ctx context.Context) dbpool.Closer {
	<-b.release
	return fakeCloser{}
}

func writeDocRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "judge.html"), []byte("<html>judge</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func pipeConn(t *testing.T, request string) (*httpconn.Connection, func()) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	if _, err := w.WriteString(request); err != nil {
		t.Fatalf("write request: %v", err)
	}

	fd := int(r.Fd())
	conn := httpconn.New(fd, "127.0.0.1:0", "test-conn", httpconn.Deps{DocRoot: writeDocRoot(t)})

	cleanup := func() {
		_ = r.Close()
		_ = w.Close()
	}
	return conn, cleanup
}

func TestProactorWorkerProcessesAlreadyReadRequest(t *testing.T) {
	req := "GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n"
	conn, cleanup := pipeConn(t, req)
	defer cleanup()

	// Proactor mode: the reactor thread has already filled the buffer
	// before submitting; simulate that with a direct ReadOnce off the pipe.
	if status := conn.ReadOnce(false); status != httpconn.ReadMore {
		t.Fatalf("seed read: got %v want ReadMore", status)
	}

	p := New(Proactor, fakeLeaser{}, 1, 4)
	defer p.Stop()

	task, ok := p.SubmitProactor(conn)
	if !ok {
		t.Fatal("expected SubmitProactor to accept under capacity")
	}

	select {
	case out := <-task.Done:
		if out.Close {
			t.Fatal("did not expect Close on a clean static request")
		}
		if out.Result != httpconn.FileRequest {
			t.Fatalf("got %v want FileRequest", out.Result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker never completed the task")
	}
}

func TestSubmitReturnsFalseWhenQueueFull(t *testing.T) {
	// T=1 worker, Q=1. Pin the worker mid-task on conn1 so conn2 occupies
	// the only queue slot, then a third submit must be rejected rather
	// than block.
	release := make(chan struct{})
	pool := New(Reactor, blockingLeaser{release: release}, 1, 1)
	defer pool.Stop()
	defer func() { close(release) }()

	req := "GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n"
	conn1, cleanup1 := pipeConn(t, req)
	defer cleanup1()
	conn2, cleanup2 := pipeConn(t, req)
	defer cleanup2()
	conn3, cleanup3 := pipeConn(t, req)
	defer cleanup3()

	if _, ok := pool.Submit(conn1, httpconn.PhaseRead); !ok {
		t.Fatal("first submit should succeed")
	}

	// Wait for the worker to pop conn1 and block inside Lease.
	deadline := time.After(2 * time.Second)
	for pool.QueueDepth() != 0 {
		select {
		case <-deadline:
			t.Fatal("worker never drained the queue to pick up conn1")
		case <-time.After(time.Millisecond):
		}
	}

	if _, ok := pool.Submit(conn2, httpconn.PhaseRead); !ok {
		t.Fatal("second submit should succeed (queue slot)")
	}
	if _, ok := pool.Submit(conn3, httpconn.PhaseRead); ok {
		t.Fatal("third submit should be rejected: worker busy and queue slot full")
	}
}
