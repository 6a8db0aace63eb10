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
	"strconv"
	"strings"

	"github.com/sabouaram/tinyhttpd/internal/logger"
)

// lineStatus is parseLine's verdict about the bytes between checked and
// readIdx.
type lineStatus int

const (
	lineOpen lineStatus = iota
	lineOK
	lineBad
)

// parseLine scans from c.checked to c.readIdx looking for a CRLF. Rather
// than buffering in place by writing NULs, it keeps slices over the read
// buffer: on lineOK it returns the line with the CRLF stripped and simply
// advances checked past it.
func (c *Connection) parseLine() (line []byte, status lineStatus) {
	i := c.checked
	for i < c.readIdx {
		b := c.readBuf[i]
		if b == '\r' {
			if i+1 >= c.readIdx {
				return nil, lineOpen
			}
			if c.readBuf[i+1] != '\n' {
				return nil, lineBad
			}
			line = append([]byte(nil), c.readBuf[c.checked:i]...)
			c.checked = i + 2
			return line, lineOK
		}
		if b == '\n' {
			// LF without a preceding CR: malformed.
			return nil, lineBad
		}
		i++
	}
	return nil, lineOpen
}

// Feed drives the RequestLine/Header/Content state machine across
// whatever has been read into c.readBuf[:c.readIdx] so far. It is
// monotone: repeated calls never decrease c.checked.
func (c *Connection) Feed() Result {
	for {
		switch c.state {
		case StateRequestLine:
			line, status := c.parseLine()
			switch status {
			case lineOpen:
				return NoRequest
			case lineBad:
				return BadRequest
			}
			if !c.parseRequestLine(string(line)) {
				return BadRequest
			}
			c.state = StateHeader

		case StateHeader:
			line, status := c.parseLine()
			switch status {
			case lineOpen:
				return NoRequest
			case lineBad:
				return BadRequest
			}
			if len(line) == 0 {
				if c.contentLen > 0 {
					c.state = StateContent
					continue
				}
				return GetRequest
			}
			if !c.parseHeaderLine(string(line)) {
				return BadRequest
			}

		case StateContent:
			if c.readIdx < c.contentLen+c.checked {
				return NoRequest
			}
			c.body = append([]byte(nil), c.readBuf[c.checked:c.checked+c.contentLen]...)
			c.checked += c.contentLen
			return GetRequest
		}
	}
}

// parseRequestLine splits "METHOD URL VERSION" on runs of tab/space.
func (c *Connection) parseRequestLine(line string) bool {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
	if len(fields) != 3 {
		return false
	}

	method, url, version := fields[0], fields[1], fields[2]

	if version != "HTTP/1.1" {
		return false
	}

	m := parseMethod(method)
	if m != MethodGet && m != MethodPost {
		return false
	}
	c.method = m
	c.cgi = m == MethodPost

	for _, prefix := range []string{"http://", "https://"} {
		if strings.HasPrefix(url, prefix) {
			rest := url[len(prefix):]
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				url = rest[idx:]
			}
			break
		}
	}

	if !strings.HasPrefix(url, "/") {
		return false
	}

	c.url = url
	c.version = version
	return true
}

// parseHeaderLine recognizes Connection/Content-length/Host by
// case-insensitive prefix; any other header is accepted, logged at info
// here, and otherwise ignored.
func (c *Connection) parseHeaderLine(line string) bool {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return false
	}
	key := strings.TrimSpace(line[:idx])
	val := strings.TrimSpace(line[idx+1:])

	switch strings.ToLower(key) {
	case "connection":
		c.keepAlive = strings.EqualFold(val, "keep-alive")
	case "content-length":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return false
		}
		c.contentLen = n
	case "host":
		c.host = val
	default:
		if c.deps.Log != nil {
			c.deps.Log.Info("unrecognized header", logger.Fields{"conn_id": c.ConnID, "header": key})
		}
	}
	return true
}
