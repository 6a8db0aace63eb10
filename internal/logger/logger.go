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

// Package logger is the process-wide leveled log sink. It wraps logrus with
// a date/line-rotating file hook (hookfile.go) and an access-log helper,
// keeping a small public interface separate from an internal entry
// builder.
package logger

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/sirupsen/logrus"
)

// Fields carries structured key/value context attached to a log entry.
type Fields map[string]interface{}

// Logger is the sink every component of the server is handed at wiring
// time. It is safe for concurrent use by the reactor, every worker, and the
// log drainer goroutine.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	Debug(message string, fields Fields)
	Info(message string, fields Fields)
	Warning(message string, fields Fields)
	Error(message string, err error, fields Fields)
	Fatal(message string, err error, fields Fields)

	// Access emits one CLF-style line per HTTP response.
	Access(connID, remoteAddr, method, path string, status int, size int64, latency time.Duration)

	// NewConnID mints a correlation id used to tie every log line for one
	// connection together.
	NewConnID() string

	Close() error
}

type logger struct {
	l    *logrus.Logger
	hook *hookFile
}

// Options configures New. SplitLines <= 0 disables line rotation.
// QueueSize >= 1 enables the background async drain goroutine.
type Options struct {
	Dir        string
	Name       string
	SplitLines int
	QueueSize  int
	CloseLog   bool // when true, logging is a cheap no-op (the -c CLI flag)
}

// New builds a Logger. When opt.CloseLog is set, every call is a no-op
// save for Access bookkeeping costs — driven by the `-c CLOSE_LOG` flag,
// which disables the sink without touching call sites.
func New(opt Options) (Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000000",
		FullTimestamp:   true,
		DisableColors:   true,
	})
	l.SetLevel(logrus.InfoLevel)

	lg := &logger{l: l}

	if opt.CloseLog {
		l.SetOutput(nowhere{})
		return lg, nil
	}

	if opt.Dir == "" {
		opt.Dir = "serverLogs"
	}
	if opt.Name == "" {
		opt.Name = "tinyhttpd.log"
	}

	hook, err := newHookFile(opt.Dir, opt.Name, opt.SplitLines, opt.QueueSize)
	if err != nil {
		return nil, err
	}

	lg.hook = hook
	l.SetOutput(nowhere{})
	l.AddHook(hook)

	return lg, nil
}

type nowhere struct{}

func (nowhere) Write(p []byte) (int, error) { return len(p), nil }

func (l *logger) SetLevel(lvl Level) { l.l.SetLevel(lvl.logrus()) }

func (l *logger) GetLevel() Level {
	switch l.l.GetLevel() {
	case logrus.DebugLevel:
		return DebugLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.FatalLevel:
		return FatalLevel
	case logrus.PanicLevel:
		return PanicLevel
	default:
		return InfoLevel
	}
}

func (l *logger) entry(f Fields) *logrus.Entry {
	return l.l.WithFields(logrus.Fields(f))
}

func (l *logger) Debug(message string, fields Fields)   { l.entry(fields).Debug(message) }
func (l *logger) Info(message string, fields Fields)     { l.entry(fields).Info(message) }
func (l *logger) Warning(message string, fields Fields)  { l.entry(fields).Warn(message) }

func (l *logger) Error(message string, err error, fields Fields) {
	e := l.entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func (l *logger) Fatal(message string, err error, fields Fields) {
	e := l.entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func (l *logger) NewConnID() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return fmt.Sprintf("conn-%d", time.Now().UnixNano())
	}
	return id
}

func (l *logger) Access(connID, remoteAddr, method, path string, status int, size int64, latency time.Duration) {
	l.l.WithFields(logrus.Fields{
		"conn_id": connID,
		"remote":  remoteAddr,
		"method":  method,
		"path":    path,
		"status":  status,
		"size":    size,
		"latency": latency.String(),
	}).Info("access")
}

func (l *logger) Close() error {
	if l.hook != nil {
		return l.hook.Close()
	}
	return nil
}
