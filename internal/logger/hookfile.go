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

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sabouaram/tinyhttpd/internal/ioutils"
	"github.com/sirupsen/logrus"
)

// hookFile is a logrus.Hook that writes every entry to a date- and
// line-rotated file: <dir>/YYYY_MM_DD_<name>, then <..name>.1, .2, ... once
// more than splitLines records have landed in the current file today.
//
// It may additionally be fed through a bounded queue drained by a background
// goroutine (async mode); when that queue is full, Fire falls back to a
// direct synchronous write so a logging call never blocks the caller.
type hookFile struct {
	mu sync.Mutex

	dir        string
	name       string
	splitLines int

	day     int
	counter int
	suffix  int
	fh      *os.File

	queue chan []byte
	wg    sync.WaitGroup
}

// newHookFile opens (creating parent directories as needed) the first log
// file for today and, when queueSize >= 1, starts the background drainer.
func newHookFile(dir, name string, splitLines, queueSize int) (*hookFile, error) {
	if splitLines <= 0 {
		splitLines = 1 << 30
	}

	h := &hookFile{
		dir:        dir,
		name:       name,
		splitLines: splitLines,
	}

	if err := ioutils.PathCheckCreate(false, dir, 0o644, 0o755); err != nil {
		return nil, err
	}

	if err := h.rotateLocked(time.Now()); err != nil {
		return nil, err
	}

	if queueSize >= 1 {
		h.queue = make(chan []byte, queueSize)
		h.wg.Add(1)
		go h.drain(queueSize)
	}

	return h, nil
}

func (h *hookFile) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *hookFile) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}

	b := []byte(line)

	if h.queue == nil {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.writeLocked(b, e.Time)
	}

	select {
	case h.queue <- b:
		return nil
	default:
		// Queue saturated: never block the hot logging path, write inline.
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.writeLocked(b, e.Time)
	}
}

// drain batches up to min(16, queueSize/10) records (at least 1) between
// flushes and blocks on the queue channel while it sits empty, keeping the
// async drain loop free of back-pressure on the hot path.
func (h *hookFile) drain(queueSize int) {
	defer h.wg.Done()

	batch := queueSize / 10
	if batch > 16 {
		batch = 16
	}
	if batch < 1 {
		batch = 1
	}

	for b := range h.queue {
		h.mu.Lock()
		_ = h.writeLocked(b, time.Now())
		n := 1
		for n < batch {
			select {
			case nb, ok := <-h.queue:
				if !ok {
					h.mu.Unlock()
					return
				}
				_ = h.writeLocked(nb, time.Now())
				n++
			default:
				n = batch
			}
		}
		if h.fh != nil {
			_ = h.fh.Sync()
		}
		h.mu.Unlock()
	}
}

func (h *hookFile) writeLocked(b []byte, now time.Time) error {
	if err := h.maybeRotateLocked(now); err != nil {
		return err
	}
	if _, err := h.fh.Write(b); err != nil {
		return err
	}
	h.counter++
	return nil
}

func (h *hookFile) maybeRotateLocked(now time.Time) error {
	if now.Day() != h.day {
		return h.rotateLocked(now)
	}
	if h.counter > 0 && h.counter%h.splitLines == 0 {
		h.suffix = h.counter / h.splitLines
		return h.openLocked(now)
	}
	return nil
}

func (h *hookFile) rotateLocked(now time.Time) error {
	h.day = now.Day()
	h.counter = 0
	h.suffix = 0
	return h.openLocked(now)
}

func (h *hookFile) openLocked(now time.Time) error {
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02"), h.name)
	if h.suffix > 0 {
		base = fmt.Sprintf("%s.%d", base, h.suffix)
	}

	fh, err := os.OpenFile(filepath.Join(h.dir, base), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	old := h.fh
	h.fh = fh
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (h *hookFile) Close() error {
	if h.queue != nil {
		close(h.queue)
		h.wg.Wait()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fh != nil {
		return h.fh.Close()
	}
	return nil
}
