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
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorSettersReflectInSnapshot(t *testing.T) {
	c := New()
	c.SetActive(3)
	c.SetQueueDepth(7)
	c.SetDBInUse(2)
	c.IncAccepted()
	c.ObserveRequest("GET", 200)
	c.ObserveRequest("GET", 404)

	snap := c.Values()
	if snap.ConnectionsActive != 3 || snap.QueueDepth != 7 || snap.DBInUse != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCollectorHandlerExposesRegisteredMetrics(t *testing.T) {
	c := New()
	c.SetActive(5)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tinyhttpd_connections_active 5") {
		t.Fatalf("expected gauge value in body, got: %s", rr.Body.String())
	}
}
