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
	"fmt"
	"os"
	"strconv"

	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/sabouaram/tinyhttpd/internal/erro"
)

// warnInt is a pflag.Value that never fails to parse: an invalid value is
// reported through warn and the flag's current value is left untouched.
// The CLI accepts only numeric flag values; non-numeric inputs are
// skipped with a warning rather than aborting. Standard pflag.IntVar
// would instead abort flag parsing outright, so every numeric flag here
// uses this adapter instead.
type warnInt struct {
	v    *int
	warn *[]string
	name string
}

func (w *warnInt) String() string {
	if w.v == nil {
		return "0"
	}
	return strconv.Itoa(*w.v)
}

func (w *warnInt) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		*w.warn = append(*w.warn, fmt.Sprintf("flag -%s: ignoring non-numeric value %q", w.name, s))
		return nil
	}
	*w.v = n
	return nil
}

func (w *warnInt) Type() string { return "int" }

// Parsed pairs a Settings value with the warnings accumulated while
// parsing flags (non-numeric values), so a caller can log them once the
// logger is wired up.
type Parsed struct {
	Settings Settings
	Warnings []string
}

// BuildCommand constructs the cobra root command carrying every CLI
// flag, bound into a Viper instance so environment variables
// (WEBSERVER_DB_*) and flags share one source of truth. args are parsed
// here and the resulting values stored in v, so FromViper(v) can be
// called directly to materialize Settings; executing the returned command
// parses args a second time.
func BuildCommand(args []string) (*spfcbr.Command, *spfvpr.Viper, *[]string) {
	def := Default()
	warnings := &[]string{}

	v := spfvpr.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	cmd := &spfcbr.Command{
		Use:           "tinyhttpd",
		Short:         "Linux HTTP/1.1 server with epoll reactor and worker pool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(*spfcbr.Command, []string) error { return nil },
	}
	cmd.SetArgs(args)

	fs := cmd.Flags()

	port, logWrite, trig, sqlNum, threadNum, actor := def.Port, def.LogWrite, int(def.TrigMode), def.SQLNum, def.ThreadNum, int(def.ActorModel)
	optLinger, closeLog := 0, 0
	if def.OptLinger {
		optLinger = 1
	}
	if def.CloseLog {
		closeLog = 1
	}
	fdLimit := def.FDLimit

	fs.VarP(&warnInt{&port, warnings, "p"}, "p", "p", "listen port")
	fs.VarP(&warnInt{&logWrite, warnings, "l"}, "l", "l", "log write mode (0 sync, 1 async)")
	fs.VarP(&warnInt{&trig, warnings, "m"}, "m", "m", "trigger mode (0..3)")
	fs.VarP(&warnInt{&optLinger, warnings, "o"}, "o", "o", "SO_LINGER (0|1)")
	fs.VarP(&warnInt{&sqlNum, warnings, "s"}, "s", "s", "db pool size")
	fs.VarP(&warnInt{&threadNum, warnings, "t"}, "t", "t", "worker thread count")
	fs.VarP(&warnInt{&closeLog, warnings, "c"}, "c", "c", "close log (0|1)")
	fs.VarP(&warnInt{&actor, warnings, "a"}, "a", "a", "actor model (0 Proactor, 1 Reactor)")
	fs.VarP(&warnInt{&fdLimit, warnings, "fd-limit"}, "fd-limit", "", "attempt to raise RLIMIT_NOFILE to at least N")

	metricsAddr := fs.String("metrics-addr", def.MetricsAddr, "bind address for /metrics and /healthz (empty disables)")
	docRoot := fs.String("doc-root", def.DocRoot, "document root directory")

	_ = v.BindPFlags(fs)

	_ = v.BindEnv("db_user", "WEBSERVER_DB_USER")
	_ = v.BindEnv("db_pass", "WEBSERVER_DB_PASSWD")
	_ = v.BindEnv("db_name", "WEBSERVER_DB_NAME")

	if err := fs.Parse(args); err != nil {
		*warnings = append(*warnings, err.Error())
	}

	v.Set("port", port)
	v.Set("log_write", logWrite)
	v.Set("trig_mode", trig)
	v.Set("opt_linger", optLinger != 0)
	v.Set("sql_num", sqlNum)
	v.Set("thread_num", threadNum)
	v.Set("close_log", closeLog != 0)
	v.Set("actor_model", actor)
	v.Set("fd_limit", fdLimit)
	v.Set("metrics_addr", *metricsAddr)
	v.Set("doc_root", *docRoot)

	return cmd, v, warnings
}

// FromViper decodes v into a Settings via viper.Unmarshal, which shells out
// to mapstructure for the TrigMode/ActorModel int-alias fields — no bespoke
// switch per field is needed since mapstructure converts by Kind.
func FromViper(v *spfvpr.Viper) (Settings, error) {
	s := Default()
	if err := v.Unmarshal(&s); err != nil {
		return s, erro.Wrap(erro.ErrConfig, "config: decode settings", err)
	}
	return s, nil
}

// LoadDBEnv reads the three mandatory DB environment variables directly
// (bypassing Viper's precedence rules, which would silently accept an
// empty flag value): their absence is fatal, independent of any CLI
// flag.
func LoadDBEnv(s *Settings) error {
	user, okU := os.LookupEnv("WEBSERVER_DB_USER")
	pass, okP := os.LookupEnv("WEBSERVER_DB_PASSWD")
	name, okN := os.LookupEnv("WEBSERVER_DB_NAME")

	if !okU || !okP || !okN || user == "" || pass == "" || name == "" {
		return erro.New(erro.ErrConfig, "WEBSERVER_DB_USER, WEBSERVER_DB_PASSWD and WEBSERVER_DB_NAME must all be set")
	}

	s.DBUser = user
	s.DBPass = pass
	s.DBName = name
	return nil
}
