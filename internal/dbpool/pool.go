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

// Package dbpool implements a fixed-size database connection pool: eager
// construction of max live *gorm.DB handles, leased under a counting
// semaphore, with a scoped-guard discipline so a handle can never outlive
// its lease.
package dbpool

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sabouaram/tinyhttpd/internal/concurrency"
	"github.com/sabouaram/tinyhttpd/internal/erro"
)

// Config is the DSN material gathered from CLI/env: url/user/
// password/db/port plus the pool size and whether queries are logged.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Max      int
	CloseLog bool
}

func (c Config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Pool is the fixed-size DB handle pool.
type Pool struct {
	mu   sync.Mutex
	free []*gorm.DB
	sem  *concurrency.Semaphore

	max    int
	inUse  int
}

// New eagerly opens Config.Max live handles. On any failure while opening,
// every handle already opened is closed and the error is returned.
func New(cfg Config) (*Pool, error) {
	if cfg.Max <= 0 {
		return nil, erro.New(erro.ErrConfig, "dbpool: max must be > 0")
	}

	sem, err := concurrency.NewSemaphore(cfg.Max)
	if err != nil {
		return nil, erro.Wrap(erro.ErrConfig, "dbpool: semaphore", err)
	}

	p := &Pool{sem: sem, max: cfg.Max}

	gcfg := &gorm.Config{}
	if cfg.CloseLog {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	for i := 0; i < cfg.Max; i++ {
		db, err := gorm.Open(mysql.Open(cfg.dsn()), gcfg)
		if err != nil {
			p.closeAll()
			return nil, erro.Wrap(erro.ErrDatabase, "dbpool: open handle", err)
		}
		p.free = append(p.free, db)
	}

	return p, nil
}

func (p *Pool) closeAll() {
	for _, db := range p.free {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	p.free = nil
}

// acquire waits on the semaphore then pops one live handle off the free
// list. Pair every acquire with a release on all exit paths — prefer
// Lease, which does this automatically.
func (p *Pool) acquire(ctx context.Context) *gorm.DB {
	_ = p.sem.Wait(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free) - 1
	db := p.free[n]
	p.free = p.free[:n]
	p.inUse++
	return db
}

// release returns h to the free list and posts the semaphore, waking one
// waiter if any is blocked in acquire.
func (p *Pool) release(h *gorm.DB) {
	p.mu.Lock()
	p.free = append(p.free, h)
	p.inUse--
	p.mu.Unlock()

	p.sem.Post()
}

// InUse reports the number of handles currently leased, for the
// process metrics gauge.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Max returns the pool's fixed handle count.
func (p *Pool) Max() int { return p.max }

// Destroy closes every handle. It is idempotent.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeAll()
}
