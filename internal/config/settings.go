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

// Package config binds the server's CLI flags and environment variables
// to a Settings value, following a component-registration shape
// (manage.go/component.go) scaled down to this server's three components
// (database, http, log).
package config

// TrigMode selects the edge/level trigger combination for the listen and
// connection sockets, set by the `-m TRIGMODE` flag.
type TrigMode int

const (
	// TrigListenLTConnLT is the default: both listen and connection sockets
	// are level triggered.
	TrigListenLTConnLT TrigMode = 0
	TrigListenLTConnET TrigMode = 1
	TrigListenETConnLT TrigMode = 2
	TrigListenETConnET TrigMode = 3
)

func (m TrigMode) ListenEdgeTriggered() bool {
	return m == TrigListenETConnLT || m == TrigListenETConnET
}

func (m TrigMode) ConnEdgeTriggered() bool {
	return m == TrigListenLTConnET || m == TrigListenETConnET
}

func (m TrigMode) String() string {
	switch m {
	case TrigListenLTConnET:
		return "listen-LT/conn-ET"
	case TrigListenETConnLT:
		return "listen-ET/conn-LT"
	case TrigListenETConnET:
		return "listen-ET/conn-ET"
	default:
		return "listen-LT/conn-LT"
	}
}

// ActorModel selects the concurrency model, set by the `-a ACTORMODEL` flag.
type ActorModel int

const (
	ActorProactor ActorModel = 0
	ActorReactor  ActorModel = 1
)

func (a ActorModel) String() string {
	if a == ActorReactor {
		return "reactor"
	}
	return "proactor"
}

// Settings is every value the CLI/environment surface produces. Field
// names mirror the flag letters in comments for traceability.
type Settings struct {
	Port       int      `mapstructure:"port"`        // -p
	LogWrite   int      `mapstructure:"log_write"`   // -l (0 sync, 1 async)
	TrigMode   TrigMode `mapstructure:"trig_mode"`   // -m
	OptLinger  bool     `mapstructure:"opt_linger"`  // -o
	SQLNum     int      `mapstructure:"sql_num"`     // -s
	ThreadNum  int      `mapstructure:"thread_num"`  // -t
	CloseLog   bool     `mapstructure:"close_log"`   // -c
	ActorModel ActorModel `mapstructure:"actor_model"` // -a

	// Supplemental flags not tied to a single CLI letter.
	MetricsAddr string `mapstructure:"metrics_addr"`
	FDLimit     int    `mapstructure:"fd_limit"`

	DocRoot string `mapstructure:"doc_root"`

	DBHost string `mapstructure:"db_host"`
	DBPort int    `mapstructure:"db_port"`
	DBUser string `mapstructure:"db_user"`
	DBPass string `mapstructure:"db_pass"`
	DBName string `mapstructure:"db_name"`
}

// Default returns the server's documented defaults.
func Default() Settings {
	return Settings{
		Port:       9006,
		LogWrite:   0,
		TrigMode:   TrigListenLTConnLT,
		OptLinger:  false,
		SQLNum:     8,
		ThreadNum:  8,
		CloseLog:   false,
		ActorModel: ActorProactor,
		DocRoot:    "./root",
		DBHost:     "127.0.0.1",
		DBPort:     3306,
	}
}

// Validate checks the non-positive-capacity fatal configuration
// conditions. DB credential presence is checked separately by LoadDBEnv,
// since it is an environment-variable contract rather than a flag.
func (s Settings) Validate() error {
	switch {
	case s.SQLNum <= 0:
		return errConfig("sql pool size (-s) must be > 0")
	case s.ThreadNum <= 0:
		return errConfig("thread count (-t) must be > 0")
	case s.Port <= 0 || s.Port > 65535:
		return errConfig("port (-p) must be in 1..65535")
	}
	return nil
}
