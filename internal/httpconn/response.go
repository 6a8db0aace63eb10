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

package httpconn

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// statusFor maps a Result to (code, reason, inline error body). FileRequest
// has no inline body — its payload is the mmap'd file itself.
func statusFor(r Result) (code int, reason string, body string) {
	switch r {
	case GetRequest, FileRequest:
		return 200, "OK", ""
	case BadRequest:
		return 400, "Bad Request", "Your browser sent a bad request.\n"
	case ForbiddenRequest:
		return 403, "Forbidden", "You do not have permission to get the requested file.\n"
	case NoResource:
		return 404, "Not Found", "The requested file was not found on this server.\n"
	default:
		return 500, "Internal Server Error", "Internal server busy.\n"
	}
}

// ProcessWrite formats the response headers for r into c.headers and wires
// up the scatter/gather segments: for FileRequest, (headers, mmap region);
// otherwise (headers, inline body).
func (c *Connection) ProcessWrite(r Result) {
	code, reason, body := statusFor(r)

	conn := "close"
	if c.keepAlive {
		conn = "keep-alive"
	}

	contentLength := int64(len(body))
	if r == FileRequest {
		contentLength = c.fileSize
	}

	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: %s\r\n\r\n",
		code, reason, contentLength, conn)

	c.headersLen = copy(c.headers[:], head)
	if r != FileRequest {
		c.headersLen += copy(c.headers[c.headersLen:], body)
	}

	c.sent = 0
	c.totalToSend = c.headersLen + int(contentLength)
}

// ErrorResponse renders a standalone HTTP/1.1 response for r (status line,
// headers, inline body) with Connection: close, for callers that reject a
// connection before — or without ever building — a full Connection, such
// as the reactor's back-pressure and accept-refusal paths. r must not be
// FileRequest, which has no inline body to render this way.
func ErrorResponse(r Result) []byte {
	code, reason, body := statusFor(r)
	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		code, reason, len(body))
	return append([]byte(head), body...)
}

// iovecs returns the current (possibly partially-drained) scatter/gather
// segments: the unsent tail of the headers buffer, then — for
// FileRequest — the unsent tail of the mmap'd region.
func (c *Connection) iovecs() [][]byte {
	var segs [][]byte

	if c.sent < c.headersLen {
		segs = append(segs, c.headers[c.sent:c.headersLen])
	}

	if region := c.guard.Region(); region != nil {
		fileSent := c.sent - c.headersLen
		if fileSent < 0 {
			fileSent = 0
		}
		if fileSent < len(region) {
			segs = append(segs, region[fileSent:])
		}
	}

	return segs
}

// WriteStatus is the outcome of one Write call.
type WriteStatus int

const (
	WriteDone WriteStatus = iota
	WritePending
	WriteFailed
)

// Write drives writev until every queued byte has been sent. On EAGAIN
// it reports WritePending so the caller re-arms EPOLLOUT; on a hard
// failure (EPIPE/ECONNRESET/other) it reports WriteFailed so the caller
// closes the connection.
func (c *Connection) Write() WriteStatus {
	for c.sent < c.totalToSend {
		segs := c.iovecs()
		if len(segs) == 0 {
			break
		}

		n, err := unix.Writev(c.Fd, segs)
		if n > 0 {
			c.sent += n
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return WritePending
			}
			if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
				return WriteFailed
			}
			return WriteFailed
		}
	}
	return WriteDone
}

// ReadStatus is the outcome of one ReadOnce call.
type ReadStatus int

const (
	ReadMore ReadStatus = iota
	ReadClosed
	ReadError
)

// ReadOnce reads newly arrived bytes into the tail of the read buffer. In
// level-triggered mode it performs exactly one recv; in edge-triggered
// mode it loops until EAGAIN/EWOULDBLOCK.
func (c *Connection) ReadOnce(edgeTriggered bool) ReadStatus {
	for {
		if c.readIdx >= len(c.readBuf) {
			return ReadError
		}

		n, err := unix.Read(c.Fd, c.readBuf[c.readIdx:])
		if n > 0 {
			c.readIdx += n
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return ReadMore
			}
			return ReadError
		}
		if n == 0 {
			return ReadClosed
		}
		if !edgeTriggered {
			return ReadMore
		}
	}
}
