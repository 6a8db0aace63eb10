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

// Command tinyhttpd wires every component — config, logging, the DB pool,
// the worker pool, the reactor, and the supplemental metrics/health mux —
// into one running server and drives its lifecycle end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/sabouaram/tinyhttpd/internal/config"
	"github.com/sabouaram/tinyhttpd/internal/dbpool"
	"github.com/sabouaram/tinyhttpd/internal/httpconn"
	"github.com/sabouaram/tinyhttpd/internal/logger"
	"github.com/sabouaram/tinyhttpd/internal/metrics"
	"github.com/sabouaram/tinyhttpd/internal/reactor"
	"github.com/sabouaram/tinyhttpd/internal/rlimit"
	"github.com/sabouaram/tinyhttpd/internal/threadpool"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd, v, warnings := config.BuildCommand(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tinyhttpd:", err)
		return 1
	}

	settings, err := config.FromViper(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tinyhttpd:", err)
		return 1
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "tinyhttpd:", err)
		return 1
	}
	if err := config.LoadDBEnv(&settings); err != nil {
		fmt.Fprintln(os.Stderr, "tinyhttpd:", err)
		return 1
	}

	log, err := logger.New(logger.Options{
		Dir:        "serverLogs",
		Name:       "tinyhttpd.log",
		SplitLines: 200000,
		QueueSize:  queueSizeFor(settings.LogWrite),
		CloseLog:   settings.CloseLog,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "tinyhttpd: logger:", err)
		return 1
	}

	for _, w := range *warnings {
		log.Warning(w, nil)
	}

	fdCur, fdMax, err := rlimit.Raise(settings.FDLimit)
	switch {
	case err != nil:
		log.Warning("rlimit: could not raise RLIMIT_NOFILE", logger.Fields{"want": settings.FDLimit, "err": err.Error()})
		fdCur, _, _ = rlimit.Raise(0)
	case settings.FDLimit > 0:
		log.Info("rlimit: file descriptor limit", logger.Fields{"current": fdCur, "max": fdMax})
	}

	printBanner(settings)

	dbPool, err := dbpool.New(dbpool.Config{
		Host:     settings.DBHost,
		Port:     settings.DBPort,
		User:     settings.DBUser,
		Password: settings.DBPass,
		DBName:   settings.DBName,
		Max:      settings.SQLNum,
		CloseLog: settings.CloseLog,
	})
	if err != nil {
		log.Fatal("tinyhttpd: db pool", err, nil)
		return 1
	}
	defer dbPool.Destroy()

	users := dbpool.NewUsers()
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	loadErr := users.Load(loadCtx, dbPool)
	loadCancel()
	if loadErr != nil {
		log.Fatal("tinyhttpd: load users", loadErr, nil)
		return 1
	}

	met := metrics.New()

	fdg, err := metrics.NewFDGauge(met)
	if err != nil {
		log.Warning("metrics: fd gauge unavailable", logger.Fields{"err": err.Error()})
	}

	pool := threadpool.New(actorModel(settings.ActorModel), dbPool, settings.ThreadNum, settings.ThreadNum*4)
	defer pool.Stop()

	deps := httpconn.Deps{
		DocRoot: settings.DocRoot,
		Users:   users,
		Pool:    dbPool,
		Log:     log,
	}

	opt := reactor.Options{
		Port:       settings.Port,
		TrigMode:   settings.TrigMode,
		ActorModel: settings.ActorModel,
		OptLinger:  settings.OptLinger,
		MaxFD:      maxFDFor(fdCur),
	}

	srv, err := reactor.New(opt, deps, pool, met, log)
	if err != nil {
		log.Fatal("tinyhttpd: reactor setup", err, nil)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if fdg != nil {
		go fdg.Run(ctx, 5*time.Second)
	}

	var sideDone chan error
	if settings.MetricsAddr != "" {
		sideDone = make(chan error, 1)
		go func() { sideDone <- met.ServeSide(ctx, settings.MetricsAddr) }()
	}

	go reportQueueDepth(ctx, pool, dbPool, met)

	log.Info("server start", logger.Fields{"port": srv.Port(), "actor_model": settings.ActorModel})

	runErr := srv.Run(ctx)

	log.Info("server stop", nil)
	_ = log.Close()

	if sideDone != nil {
		<-sideDone
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "tinyhttpd:", runErr)
		return 1
	}
	return 0
}

func actorModel(a config.ActorModel) threadpool.ActorModel {
	if a == config.ActorReactor {
		return threadpool.Reactor
	}
	return threadpool.Proactor
}

// maxFDFor derives the reactor's accept-refusal budget from the process's
// soft RLIMIT_NOFILE, leaving headroom for the process's own
// non-connection fds (log file, DB handles, listen/epoll/self-pipe).
func maxFDFor(limit int) int {
	if limit <= 0 {
		return 0
	}
	headroom := 64
	if limit <= headroom {
		return 1
	}
	return limit - headroom
}

func queueSizeFor(logWrite int) int {
	if logWrite == 1 {
		return 1024
	}
	return 0
}

func reportQueueDepth(ctx context.Context, pool *threadpool.Pool, dbPool *dbpool.Pool, met *metrics.Collector) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			met.SetQueueDepth(pool.QueueDepth())
			met.SetDBInUse(dbPool.InUse())
		}
	}
}

func printBanner(s config.Settings) {
	banner := color.New(color.FgCyan, color.Bold)
	banner.Printf("tinyhttpd listening on :%d (actor=%v trig=%v sql=%d threads=%d)\n",
		s.Port, s.ActorModel, s.TrigMode, s.SQLNum, s.ThreadNum)
}
