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

// Package metrics is the server's observability component: a Prometheus
// registry plus a process open-fd gauge, served by a tiny side HTTP mux
// distinct from the reactor's client sockets so it never competes for the
// max-fd budget.
package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every gauge/counter the reactor, thread pool and DB pool
// report into. Gauge values are mirrored into plain atomics so Values can
// read them back without reaching into the Prometheus collector interface.
type Collector struct {
	reg *prometheus.Registry

	connectionsActive  prometheus.Gauge
	connectionsAccepted prometheus.Counter
	requestsTotal      *prometheus.CounterVec
	queueDepth         prometheus.Gauge
	dbInUse            prometheus.Gauge
	openFDs            prometheus.Gauge

	active  atomic.Int64
	qdepth  atomic.Int64
	dbUse   atomic.Int64
	fds     atomic.Int64
}

// New registers every metric against a fresh registry (not the global
// default, so tests can construct more than one Collector without
// colliding).
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinyhttpd_connections_active",
			Help: "Currently open client connections.",
		}),
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinyhttpd_connections_accepted_total",
			Help: "Total accepted client connections.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinyhttpd_requests_total",
			Help: "Total HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinyhttpd_worker_queue_depth",
			Help: "Pending tasks in the worker pool's queue.",
		}),
		dbInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinyhttpd_db_pool_in_use",
			Help: "Leased handles in the DB connection pool.",
		}),
		openFDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tinyhttpd_open_fds",
			Help: "Open file descriptors held by this process.",
		}),
	}

	reg.MustRegister(c.connectionsActive, c.connectionsAccepted, c.requestsTotal, c.queueDepth, c.dbInUse, c.openFDs)
	return c
}

func (c *Collector) IncAccepted() { c.connectionsAccepted.Inc() }

func (c *Collector) SetActive(n int) {
	c.connectionsActive.Set(float64(n))
	c.active.Store(int64(n))
}

func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
	c.qdepth.Store(int64(n))
}

func (c *Collector) SetDBInUse(n int) {
	c.dbInUse.Set(float64(n))
	c.dbUse.Store(int64(n))
}

func (c *Collector) setOpenFDs(n int) {
	c.openFDs.Set(float64(n))
	c.fds.Store(int64(n))
}

func (c *Collector) ObserveRequest(method string, status int) {
	c.requestsTotal.WithLabelValues(method, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Snapshot is a point-in-time readout of the gauges, returned by Values.
type Snapshot struct {
	ConnectionsActive int
	QueueDepth        int
	DBInUse           int
	OpenFDs           int
}

// Values returns a point-in-time readout of every gauge this Collector
// tracks. The /healthz endpoint does not use it; it always answers "ok".
func (c *Collector) Values() Snapshot {
	return Snapshot{
		ConnectionsActive: int(c.active.Load()),
		QueueDepth:        int(c.qdepth.Load()),
		DBInUse:           int(c.dbUse.Load()),
		OpenFDs:           int(c.fds.Load()),
	}
}

// Handler returns the promhttp handler for this Collector's private
// registry — mounted on the side mux, never on the reactor's client-facing
// listener.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ServeSide starts the supplemental /metrics + /healthz mux on addr and
// blocks until ctx is cancelled. Callers with addr == "" should not call
// this — the supplemental mux is opt-in, enabled via `--metrics-addr`.
func (c *Collector) ServeSide(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
