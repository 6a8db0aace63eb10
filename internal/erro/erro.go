/*
 * MIT License
 *
 * Copyright (c) 2020-2025 Nicolas JUHEL
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

// Package erro gives every error kind the server raises a stable numeric
// code, compatible with errors.Is/errors.As: a CodeError pattern (a
// uint16 code plus a parent-error chain) trimmed down to what this server
// actually raises.
package erro

import "fmt"

// CodeError is a small numeric error classification. Where a kind maps
// naturally onto an HTTP status, the code IS that status.
type CodeError uint16

const (
	UnknownError        CodeError = 0
	ErrConfig           CodeError = 1
	ErrResourceExhausted CodeError = 500
	ErrProtocol         CodeError = 400
	ErrForbidden        CodeError = 403
	ErrNotFound         CodeError = 404
	ErrPeerReset        CodeError = 2
	ErrTransient        CodeError = 3
	ErrDatabase         CodeError = 4
)

var messages = map[CodeError]string{
	UnknownError:         "unknown error",
	ErrConfig:            "invalid configuration",
	ErrResourceExhausted: "internal server busy",
	ErrProtocol:          "bad request",
	ErrForbidden:         "forbidden",
	ErrNotFound:          "not found",
	ErrPeerReset:         "peer connection reset",
	ErrTransient:         "transient I/O condition",
	ErrDatabase:          "database error",
}

// Error is a CodeError bound to a message and an optional parent error.
type Error struct {
	code   CodeError
	msg    string
	parent error
}

// New builds an Error for the given code, defaulting to the code's
// registered message when msg is empty.
func New(code CodeError, msg string) *Error {
	if msg == "" {
		msg = messages[code]
	}
	return &Error{code: code, msg: msg}
}

// Wrap attaches code/msg to an existing error as its parent, preserving
// errors.Is/errors.As compatibility through Unwrap.
func Wrap(code CodeError, msg string, parent error) *Error {
	e := New(code, msg)
	e.parent = parent
	return e
}

func (e *Error) Code() CodeError { return e.code }

func (e *Error) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.parent)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.parent }

// Is lets errors.Is match two *Error values by code alone, independent of
// message text or wrapped parent.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}
