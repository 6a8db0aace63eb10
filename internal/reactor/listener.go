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
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/tinyhttpd/internal/httpconn"
)

// newListener builds a nonblocking IPv4 TCP listen socket bound to port:
// SO_REUSEADDR always, SO_LINGER only when optLinger is requested (the
// `-o OPT_LINGER` flag), and EPOLLONESHOT-compatible nonblocking mode
// regardless of trigger mode.
func newListener(port int, edgeTriggered bool, optLinger bool) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("reactor: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("reactor: SO_REUSEADDR: %w", err)
	}

	if optLinger {
		l := unix.Linger{Onoff: 1, Linger: 1}
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &l); err != nil {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("reactor: SO_LINGER: %w", err)
		}
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("reactor: bind :%d: %w", port, err)
	}

	if err := unix.Listen(fd, 1024); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("reactor: listen: %w", err)
	}

	_ = edgeTriggered // listen-socket trigger mode only affects acceptLoop's drain discipline

	return fd, nil
}

// boundPort reads back the port the kernel assigned a listen socket bound
// with port 0 — used by tests that want an ephemeral port rather than a
// fixed one.
func boundPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	default:
		return 0, fmt.Errorf("reactor: unexpected sockaddr type %T", sa)
	}
}

// peerString renders a unix.Sockaddr from Accept4 as host:port, falling
// back to "unknown" for address families this server never actually
// produces (it only ever binds AF_INET).
func peerString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IPv4(a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3])
		return fmt.Sprintf("%s:%d", ip.String(), a.Port)
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		return fmt.Sprintf("[%s]:%d", ip.String(), a.Port)
	default:
		return "unknown"
	}
}

// statusCodeFor mirrors httpconn's internal statusFor table for access
// logging and metrics, which only need the numeric code.
func statusCodeFor(r httpconn.Result) int {
	switch r {
	case httpconn.GetRequest, httpconn.FileRequest:
		return 200
	case httpconn.BadRequest:
		return 400
	case httpconn.ForbiddenRequest:
		return 403
	case httpconn.NoResource:
		return 404
	default:
		return 500
	}
}
