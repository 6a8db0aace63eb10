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

package dbpool

import (
	"context"
	"sync"

	"github.com/sabouaram/tinyhttpd/internal/erro"
)

// user is the row shape of the single `user` table.
type user struct {
	Username string `gorm:"column:username"`
	Passwd   string `gorm:"column:passwd"`
}

func (user) TableName() string { return "user" }

// Users is the in-memory username->password map: loaded once at startup,
// refreshed only under a writer lock, read freely thereafter.
type Users struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewUsers returns an empty map; call Load to populate it at startup.
func NewUsers() *Users {
	return &Users{m: make(map[string]string)}
}

// NewUsersFromMap seeds a Users map directly, bypassing the DB — useful for
// tests of the httpconn login/register dispatch that don't want a live
// database.
func NewUsersFromMap(m map[string]string) *Users {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &Users{m: cp}
}

// Load issues `SELECT username,passwd FROM user` via a scoped lease and
// replaces the in-memory map wholesale.
func (u *Users) Load(ctx context.Context, p *Pool) error {
	lease := NewLease(ctx, p)
	defer lease.Close()

	var rows []user
	if err := lease.DB().WithContext(ctx).Select("username", "passwd").Find(&rows).Error; err != nil {
		return erro.Wrap(erro.ErrDatabase, "dbpool: load users", err)
	}

	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Username] = r.Passwd
	}

	u.mu.Lock()
	u.m = m
	u.mu.Unlock()
	return nil
}

// Check reports whether username exists and passwd matches — the
// `/2CGISQL.cgi` login path.
func (u *Users) Check(username, passwd string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	got, ok := u.m[username]
	return ok && got == passwd
}

// Exists reports whether username is already registered.
func (u *Users) Exists(username string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.m[username]
	return ok
}

// Register issues `INSERT INTO user(username, passwd) VALUES(...)` under a
// scoped lease, then adds the username to the in-memory map — the
// `/3CGISQL.cgi` registration path. The caller must already have confirmed
// the username does not exist; the check-then-insert is not made atomic
// here since registration only ever runs on the reactor/worker path that
// already serializes per-connection access.
func (u *Users) Register(ctx context.Context, p *Pool, username, passwd string) error {
	lease := NewLease(ctx, p)
	defer lease.Close()

	row := user{Username: username, Passwd: passwd}
	if err := lease.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return erro.Wrap(erro.ErrDatabase, "dbpool: register user", err)
	}

	u.mu.Lock()
	u.m[username] = passwd
	u.mu.Unlock()
	return nil
}
