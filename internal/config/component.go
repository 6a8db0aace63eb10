/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Nicolas JUHEL
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

package config

import "context"

// Component is a named, independently startable/stoppable piece of the
// server's wiring graph — a scaled-down take on a config.Component
// (component.go/manage.go): this server only ever has three (database,
// log, http), so it drops the flag/viper self-registration and reload
// machinery down to the Start/Stop order guarantee that actually matters
// here.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts registered components in registration order and stops
// them in reverse, mirroring golib/config.Manager's Start/Stop semantics
// (manage.go), so that e.g. the log sink comes up before the DB pool and
// goes down after it.
type Manager struct {
	components []Component
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register appends c to the start order.
func (m *Manager) Register(c Component) {
	m.components = append(m.components, c)
}

// Start starts every registered component in registration order, stopping
// whatever already started on the first failure.
func (m *Manager) Start(ctx context.Context) error {
	for i, c := range m.components {
		if err := c.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop(ctx)
			}
			return err
		}
	}
	return nil
}

// Stop stops every registered component in reverse registration order,
// collecting (but not short-circuiting on) individual failures.
func (m *Manager) Stop(ctx context.Context) error {
	var first error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
