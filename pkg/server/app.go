// Package server runs the MDK process: HTTP API, training-job intake and
// background maintenance, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "MDK/pkg/http"
	pkgkafka "MDK/pkg/kafka"
	applogger "MDK/pkg/logger"
	"MDK/pkg/queue"
)

// JobHandler consumes training jobs from either transport.
type JobHandler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Sweeper drops expired entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

// Components are the long-lived pieces App starts and stops. Consumer and
// Queue are optional; at most one of them is expected to be set.
type Components struct {
	HTTP            *xhttp.Server
	Consumer        *pkgkafka.Consumer
	Queue           *queue.RedisQueue
	Jobs            JobHandler
	ModelCache      Sweeper
	SweepInterval   time.Duration
	ShutdownTimeout time.Duration
	Log             *applogger.Logger
}

// App encapsulates the entire application lifecycle.
type App struct {
	c   Components
	log *applogger.Logger
}

func New(c Components) *App {
	log := c.Log
	if log == nil {
		log = applogger.Nop()
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return &App{c: c, log: log}
}

// Run starts every component and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with caller-controlled cancellation.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start(ctx context.Context) error {
	if a.c.Consumer != nil && a.c.Jobs != nil {
		a.c.Consumer.RegisterHandler(a.c.Jobs)
		if err := a.c.Consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}
	if a.c.Queue != nil && a.c.Jobs != nil {
		a.c.Queue.Register(a.c.Jobs)
		if err := a.c.Queue.Start(ctx); err != nil {
			a.log.Error("redis queue start error", applogger.Error(err))
			return err
		}
	}
	if a.c.ModelCache != nil && a.c.SweepInterval > 0 {
		go a.sweep(ctx)
	}
	if a.c.HTTP != nil {
		if err := a.c.HTTP.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}
	return nil
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(a.c.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.c.ModelCache.Sweep(); n > 0 {
				a.log.Debug("evicted idle models", applogger.Int("count", n))
			}
		}
	}
}

// shutdown stops intake first, then the HTTP server. Clients opened by the
// injector are released by its cleanup function.
func (a *App) shutdown() {
	a.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), a.c.ShutdownTimeout)
	defer cancel()

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			a.log.Warn("redis queue stop error", applogger.Error(err))
		}
	}
	if a.c.HTTP != nil {
		if err := a.c.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
