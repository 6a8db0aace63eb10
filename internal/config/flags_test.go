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

package config

import (
	"os"
	"testing"
)

func TestBuildCommandParsesNumericFlags(t *testing.T) {
	_, v, warnings := BuildCommand([]string{"-p", "8080", "-t", "4", "-a", "1"})

	s, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if s.Port != 8080 {
		t.Fatalf("port = %d, want 8080", s.Port)
	}
	if s.ThreadNum != 4 {
		t.Fatalf("thread_num = %d, want 4", s.ThreadNum)
	}
	if s.ActorModel != ActorReactor {
		t.Fatalf("actor_model = %d, want Reactor", s.ActorModel)
	}
	if len(*warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", *warnings)
	}
}

func TestBuildCommandWarnsAndKeepsDefaultOnNonNumeric(t *testing.T) {
	_, v, warnings := BuildCommand([]string{"-p", "not-a-number"})

	s, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if s.Port != Default().Port {
		t.Fatalf("port = %d, want default %d preserved on bad input", s.Port, Default().Port)
	}
	if len(*warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", *warnings)
	}
}

func TestLoadDBEnvFatalWhenAbsent(t *testing.T) {
	for _, k := range []string{"WEBSERVER_DB_USER", "WEBSERVER_DB_PASSWD", "WEBSERVER_DB_NAME"} {
		_ = os.Unsetenv(k)
	}

	var s Settings
	if err := LoadDBEnv(&s); err == nil {
		t.Fatal("expected error when DB env vars are absent")
	}
}

func TestLoadDBEnvSucceedsWhenAllSet(t *testing.T) {
	t.Setenv("WEBSERVER_DB_USER", "alice")
	t.Setenv("WEBSERVER_DB_PASSWD", "secret")
	t.Setenv("WEBSERVER_DB_NAME", "webserver")

	var s Settings
	if err := LoadDBEnv(&s); err != nil {
		t.Fatalf("LoadDBEnv: %v", err)
	}
	if s.DBUser != "alice" || s.DBPass != "secret" || s.DBName != "webserver" {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings should validate: %v", err)
	}

	bad := s
	bad.ThreadNum = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for thread_num <= 0")
	}
}
