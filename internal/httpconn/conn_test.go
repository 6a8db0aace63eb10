package httpconn

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sabouaram/tinyhttpd/internal/dbpool"
)

func writeDocRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"judge.html":   "<html>judge</html>",
		"welcome.html": "<html>welcome</html>",
		"logError.html": "<html>log error</html>",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newTestConn(t *testing.T, docRoot string) *Connection {
	t.Helper()
	c := New(-1, "127.0.0.1:0", "test-conn", Deps{DocRoot: docRoot})
	return c
}

func feedBytes(c *Connection, b []byte) Result {
	n := copy(c.readBuf[c.readIdx:], b)
	c.readIdx += n
	return c.Feed()
}

func TestParseRequestLineAcceptsGetHTTP11(t *testing.T) {
	c := newTestConn(t, t.TempDir())
	req := "GET /judge.html HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n"
	r := feedBytes(c, []byte(req))
	if r != GetRequest {
		t.Fatalf("got %v want GetRequest", r)
	}
	if !c.keepAlive {
		t.Fatal("expected keep-alive to be recognized")
	}
	if c.url != "/judge.html" {
		t.Fatalf("url = %q", c.url)
	}
}

func TestParseRejectsNonHTTP11Version(t *testing.T) {
	c := newTestConn(t, t.TempDir())
	r := feedBytes(c, []byte("GET /x HTP/1.0\r\n\r\n"))
	if r != BadRequest {
		t.Fatalf("got %v want BadRequest", r)
	}
}

func TestParseIsMonotoneAcrossPartialReads(t *testing.T) {
	c := newTestConn(t, t.TempDir())

	r := feedBytes(c, []byte("GET /judge.html HTTP/1.1\r\n"))
	if r != NoRequest {
		t.Fatalf("got %v want NoRequest on partial request", r)
	}
	checkedAfterFirst := c.checked

	r = feedBytes(c, []byte("Host: x\r\n"))
	if r != NoRequest {
		t.Fatalf("got %v want NoRequest before terminating blank line", r)
	}
	if c.checked < checkedAfterFirst {
		t.Fatal("checked must never decrease")
	}

	r = feedBytes(c, []byte("\r\n"))
	if r != GetRequest {
		t.Fatalf("got %v want GetRequest once headers end", r)
	}
}

func TestDoRequestServesStaticFile(t *testing.T) {
	dir := writeDocRoot(t)
	c := newTestConn(t, dir)
	feedBytes(c, []byte("GET /judge.html HTTP/1.1\r\nHost: x\r\n\r\n"))

	r := c.DoRequest(context.Background())
	if r != FileRequest {
		t.Fatalf("got %v want FileRequest", r)
	}
	if c.fileSize != int64(len("<html>judge</html>")) {
		t.Fatalf("fileSize = %d", c.fileSize)
	}
	_ = c.Close()
}

func TestDoRequestMissingFileIsNoResource(t *testing.T) {
	dir := writeDocRoot(t)
	c := newTestConn(t, dir)
	feedBytes(c, []byte("GET /nosuchfile HTTP/1.1\r\nHost: x\r\n\r\n"))

	if r := c.DoRequest(context.Background()); r != NoResource {
		t.Fatalf("got %v want NoResource", r)
	}
}

func TestProcessWriteBuildsHeadersForFileRequest(t *testing.T) {
	dir := writeDocRoot(t)
	c := newTestConn(t, dir)
	feedBytes(c, []byte("GET /judge.html HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n"))

	r := c.DoRequest(context.Background())
	c.ProcessWrite(r)
	defer c.Close()

	head := string(c.headers[:c.headersLen])
	if !strings.Contains(head, "HTTP/1.1 200 OK") {
		t.Fatalf("missing status line: %q", head)
	}
	if !strings.Contains(head, "Connection: keep-alive") {
		t.Fatalf("missing keep-alive header: %q", head)
	}
	wantTotal := c.headersLen + len("<html>judge</html>")
	if c.totalToSend != wantTotal {
		t.Fatalf("totalToSend = %d want %d", c.totalToSend, wantTotal)
	}
}

func TestLoginSuccessServesWelcome(t *testing.T) {
	dir := writeDocRoot(t)
	c := New(-1, "127.0.0.1:0", "test-conn", Deps{
		DocRoot: dir,
		Users:   dbpool.NewUsersFromMap(map[string]string{"alice": "secret"}),
	})

	body := "user=alice&password=secret"
	req := "POST /2CGISQL.cgi HTTP/1.1\r\nHost: x\r\nContent-length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	if r := feedBytes(c, []byte(req)); r != GetRequest {
		t.Fatalf("feed: got %v want GetRequest", r)
	}

	if r := c.DoRequest(context.Background()); r != FileRequest {
		t.Fatalf("got %v want FileRequest", r)
	}
	if c.path != filepath.Join(dir, "welcome.html") {
		t.Fatalf("path = %q", c.path)
	}
}

func TestLoginFailureServesLogError(t *testing.T) {
	dir := writeDocRoot(t)
	c := New(-1, "127.0.0.1:0", "test-conn", Deps{
		DocRoot: dir,
		Users:   dbpool.NewUsersFromMap(map[string]string{"alice": "secret"}),
	})

	body := "user=alice&password=wrong"
	req := "POST /2CGISQL.cgi HTTP/1.1\r\nHost: x\r\nContent-length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	feedBytes(c, []byte(req))

	if r := c.DoRequest(context.Background()); r != FileRequest {
		t.Fatalf("got %v want FileRequest", r)
	}
	if c.path != filepath.Join(dir, "logError.html") {
		t.Fatalf("path = %q", c.path)
	}
}

func TestResetParserReturnsToRequestLineWithZeroedCursors(t *testing.T) {
	dir := writeDocRoot(t)
	c := newTestConn(t, dir)
	feedBytes(c, []byte("GET /judge.html HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\n\r\n"))
	r := c.DoRequest(context.Background())
	c.ProcessWrite(r)

	c.resetParser()

	if c.state != StateRequestLine {
		t.Fatalf("state = %v want StateRequestLine", c.state)
	}
	if c.readIdx != 0 || c.checked != 0 {
		t.Fatalf("readIdx=%d checked=%d want 0,0", c.readIdx, c.checked)
	}
}
