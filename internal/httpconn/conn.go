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

// Package httpconn is the per-connection HTTP/1.1 state machine: a
// byte-level request parser, a small static/CGI request dispatcher, and
// an mmap-backed scatter/gather response writer.
package httpconn

import (
	"github.com/sabouaram/tinyhttpd/internal/dbpool"
	"github.com/sabouaram/tinyhttpd/internal/logger"
	"github.com/sabouaram/tinyhttpd/internal/rguard"
)

const (
	readBufferSize  = 2048
	writeBufferSize = 1024
)

// ParseState is the parser's current position in one request.
type ParseState int

const (
	StateRequestLine ParseState = iota
	StateHeader
	StateContent
)

// Method is the small set of verbs this server recognizes.
type Method int

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodHead
	MethodPut
	MethodDelete
	MethodTrace
	MethodOptions
	MethodConnect
	MethodPath
)

func parseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "HEAD":
		return MethodHead
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	case "TRACE":
		return MethodTrace
	case "OPTIONS":
		return MethodOptions
	case "CONNECT":
		return MethodConnect
	case "PATH":
		return MethodPath
	default:
		return MethodUnknown
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodHead:
		return "HEAD"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	case MethodTrace:
		return "TRACE"
	case MethodOptions:
		return "OPTIONS"
	case MethodConnect:
		return "CONNECT"
	case MethodPath:
		return "PATH"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of feeding newly read bytes through the parser and
// (once a full request is seen) the request dispatcher.
type Result int

const (
	NoRequest Result = iota
	GetRequest
	BadRequest
	ForbiddenRequest
	InternalError
	NoResource
	FileRequest
)

// Phase is the actor-model phase a connection is dispatched under in
// Reactor mode: the reactor submits a Read task first, then — once the
// parsed request is ready to send — a Write task.
type Phase int

const (
	PhaseRead Phase = iota
	PhaseWrite
)

// Deps bundles the shared, process-lifetime collaborators a Connection
// needs to resolve a request: the document root, the in-memory user map,
// and the DB pool backing registration inserts.
type Deps struct {
	DocRoot string
	Users   *dbpool.Users
	Pool    *dbpool.Pool
	Log     logger.Logger
}

// Connection is one accepted socket's parse/build/send state.
type Connection struct {
	Fd         int
	PeerAddr   string
	ConnID     string
	deps       Deps

	readBuf  [readBufferSize]byte
	readIdx  int
	checked  int
	lineStart int

	state ParseState

	method      Method
	url         string
	version     string
	host        string
	contentLen  int
	body        []byte
	keepAlive   bool
	cgi         bool

	path  string
	guard rguard.Guard

	headers    [writeBufferSize]byte
	headersLen int
	fileSize   int64

	totalToSend int
	sent        int

	// Result is set once a full request has been parsed and (for file
	// requests) resolved against the filesystem.
	Result Result
}

// New returns a Connection ready to read its first request line.
func New(fd int, peerAddr string, connID string, deps Deps) *Connection {
	c := &Connection{Fd: fd, PeerAddr: peerAddr, ConnID: connID, deps: deps}
	c.resetParser()
	return c
}

// resetParser returns the connection to RequestLine with a zeroed buffer
// cursor — the keep-alive rearm path that lets the same socket serve
// another request from a clean state.
func (c *Connection) resetParser() {
	_ = c.guard.Close()
	c.guard.Reset()

	c.readIdx = 0
	c.checked = 0
	c.lineStart = 0
	c.state = StateRequestLine

	c.method = MethodUnknown
	c.url = ""
	c.version = ""
	c.host = ""
	c.contentLen = 0
	c.body = nil
	c.cgi = false

	c.path = ""
	c.headersLen = 0
	c.fileSize = 0
	c.totalToSend = 0
	c.sent = 0
	c.Result = NoRequest
}

// KeepAlive reports whether the last completed request asked to keep the
// connection open.
func (c *Connection) KeepAlive() bool { return c.keepAlive }

// Method and URL expose the parsed request line for access logging
// (logger.Logger.Access); both are valid once Feed has returned GetRequest.
func (c *Connection) Method() Method { return c.method }
func (c *Connection) URL() string    { return c.url }

// BytesSent reports the response size written so far, for access logging.
func (c *Connection) BytesSent() int { return c.sent }

// Close releases any held mmap region. Safe to call on every close path.
func (c *Connection) Close() error {
	return c.guard.Close()
}

// ResetForKeepAlive returns the connection to RequestLine with zeroed
// cursors, ready for the next request on the same socket; any bytes
// already buffered beyond the completed request are discarded. The
// reactor calls this after a keep-alive response has been fully sent —
// it is the only exported entry point to resetParser, since no package
// outside httpconn should reach into parser-internal state directly.
func (c *Connection) ResetForKeepAlive() {
	c.resetParser()
}
