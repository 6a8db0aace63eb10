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
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/xujiajun/mmap-go"
)

// pageFor maps the first URL segment to a static page name.
var pageFor = map[string]string{
	"/":  "judge.html",
	"/0": "register.html",
	"/1": "log.html",
	"/5": "picture.html",
	"/6": "video.html",
	"/7": "fans.html",
}

// DoRequest resolves the parsed request into a Result, populating
// c.path/c.fileSize and mmap'ing a regular file when the outcome is
// FileRequest. It must only be called once Feed has returned GetRequest.
func (c *Connection) DoRequest(ctx context.Context) Result {
	switch {
	case c.cgi && c.url == "/2CGISQL.cgi":
		return c.doLogin(ctx)
	case c.cgi && c.url == "/3CGISQL.cgi":
		return c.doRegister(ctx)
	}

	name, ok := pageFor[c.url]
	if !ok {
		name = strings.TrimPrefix(c.url, "/")
	}

	return c.serveStatic(name)
}

func (c *Connection) doLogin(ctx context.Context) Result {
	vals, err := url.ParseQuery(string(c.body))
	if err != nil {
		return BadRequest
	}
	user, pass := vals.Get("user"), vals.Get("password")

	if c.deps.Users.Check(user, pass) {
		return c.serveStatic("welcome.html")
	}
	return c.serveStatic("logError.html")
}

func (c *Connection) doRegister(ctx context.Context) Result {
	vals, err := url.ParseQuery(string(c.body))
	if err != nil {
		return BadRequest
	}
	user, pass := vals.Get("user"), vals.Get("password")

	if c.deps.Users.Exists(user) {
		return c.serveStatic("registerError.html")
	}

	if err := c.deps.Users.Register(ctx, c.deps.Pool, user, pass); err != nil {
		if c.deps.Log != nil {
			c.deps.Log.Error("registration insert failed", err, nil)
		}
		return c.serveStatic("registerError.html")
	}
	return c.serveStatic("log.html")
}

// serveStatic stats doc_root+name: missing -> NoResource, not
// world-readable -> ForbiddenRequest, directory -> BadRequest, regular
// file -> mmap read-only shared and FileRequest.
func (c *Connection) serveStatic(name string) Result {
	full := filepath.Join(c.deps.DocRoot, filepath.Clean("/"+name))

	info, err := os.Stat(full)
	if err != nil {
		return NoResource
	}
	if info.IsDir() {
		return BadRequest
	}
	if info.Mode().Perm()&0o004 == 0 {
		return ForbiddenRequest
	}

	f, err := os.Open(full)
	if err != nil {
		return NoResource
	}
	defer f.Close()

	if info.Size() == 0 {
		c.path = full
		c.fileSize = 0
		return FileRequest
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return InternalError
	}

	c.guard.Add(m)
	c.path = full
	c.fileSize = info.Size()
	return FileRequest
}
