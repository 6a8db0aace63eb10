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

package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// FDGauge polls this process's open file-descriptor count on an interval
// and feeds it into the Collector's tinyhttpd_open_fds gauge, also
// readable as Collector.Values().OpenFDs. The reactor's accept-refusal
// path does not read this gauge; it counts registered connections.
type FDGauge struct {
	c    *Collector
	proc *process.Process
}

// NewFDGauge resolves the current process's gopsutil handle.
func NewFDGauge(c *Collector) (*FDGauge, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &FDGauge{c: c, proc: p}, nil
}

// Run polls every interval until ctx is cancelled. Intended to run in its
// own goroutine for the process lifetime.
func (g *FDGauge) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	g.poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.poll()
		}
	}
}

func (g *FDGauge) poll() {
	n, err := g.proc.NumFDs()
	if err != nil {
		return
	}
	g.c.setOpenFDs(int(n))
}
